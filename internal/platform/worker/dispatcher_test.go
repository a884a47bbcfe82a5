package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
)

func TestSubmitRunsTask(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(4, 1, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	ran := make(chan struct{})

	if err := d.Submit("test", func(_ context.Context) { close(ran) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	cancel()
	<-done
}

func TestSubmitQueueFull(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(1, 1, &logger)

	// No worker running; the first submit fills the queue.
	if err := d.Submit("first", func(_ context.Context) {}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	err := d.Submit("second", func(_ context.Context) {})
	if !errors.Is(err, coreerrors.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	if d.QueueDepth() != 1 {
		t.Errorf("queue depth = %d, want 1", d.QueueDepth())
	}
}

func TestRunRecoversPanic(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(4, 1, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	var survived atomic.Bool

	_ = d.Submit("panics", func(_ context.Context) { panic("boom") })
	_ = d.Submit("after", func(_ context.Context) { survived.Store(true) })

	deadline := time.After(2 * time.Second)
	for !survived.Load() {
		select {
		case <-deadline:
			t.Fatal("worker did not survive panic")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestNewDispatcherGuards(t *testing.T) {
	logger := zerolog.Nop()
	d := NewDispatcher(0, 0, &logger)

	if cap(d.tasks) != 1 {
		t.Errorf("queue capacity = %d, want 1", cap(d.tasks))
	}

	if d.workers != 1 {
		t.Errorf("workers = %d, want 1", d.workers)
	}
}
