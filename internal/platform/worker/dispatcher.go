// Package worker provides a bounded background dispatcher for fire-and-forget
// tasks. Submission never blocks: when the queue is full the task is rejected
// and the caller decides whether dropping is acceptable.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
)

type task struct {
	name string
	run  func(ctx context.Context)
}

// Dispatcher runs submitted tasks on a fixed pool of workers.
type Dispatcher struct {
	tasks   chan task
	workers int
	logger  *zerolog.Logger

	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher with the given queue capacity and worker
// count.
func NewDispatcher(queueSize, workers int, logger *zerolog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}

	if workers < 1 {
		workers = 1
	}

	return &Dispatcher{
		tasks:   make(chan task, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue is at capacity; this is the backpressure signal for callers whose
// work can be retried later.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context)) error {
	select {
	case d.tasks <- task{name: name, run: fn}:
		return nil
	default:
		return coreerrors.ErrQueueFull
	}
}

// Run consumes tasks until the context is canceled. Panics in tasks are
// recovered so one bad task cannot take down the pool.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for i := 0; i < d.workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				case t := <-d.tasks:
					d.runTask(ctx, t)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()

	d.closeOnce.Do(func() { close(d.tasks) })

	return ctx.Err()
}

func (d *Dispatcher) runTask(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("task", t.name).
				Interface("panic", r).
				Msg("recovered panic in background task")
		}
	}()

	d.logger.Debug().Str("task", t.name).Msg("running background task")
	t.run(ctx)
}

// QueueDepth reports the number of queued tasks, for metrics.
func (d *Dispatcher) QueueDepth() int {
	return len(d.tasks)
}
