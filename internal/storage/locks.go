package storage

import (
	"context"
	"fmt"
	"hash/fnv"
)

// TryAcquireAdvisoryLock attempts a session-level advisory lock without
// blocking. Returns true when the lock was acquired.
func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool

	if err := db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}

	return acquired, nil
}

// ReleaseAdvisoryLock releases a previously acquired advisory lock.
func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	if _, err := db.Pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}

	return nil
}

// ConversationLockID derives a stable advisory lock id from a conversation id.
func ConversationLockID(conversationID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(conversationID))

	return int64(h.Sum64())
}

// TryAcquireConversationLock serializes digest generation per conversation.
func (db *DB) TryAcquireConversationLock(ctx context.Context, conversationID string) (bool, error) {
	return db.TryAcquireAdvisoryLock(ctx, ConversationLockID(conversationID))
}

// ReleaseConversationLock releases the per-conversation digest lock.
func (db *DB) ReleaseConversationLock(ctx context.Context, conversationID string) error {
	return db.ReleaseAdvisoryLock(ctx, ConversationLockID(conversationID))
}
