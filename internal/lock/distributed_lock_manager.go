package lock

import "context"

// DistributedLockManager serialises work across datafire instances sharing
// one database.
type DistributedLockManager interface {
	// Acquire blocks until the lock is held or ctx expires.
	Acquire(ctx context.Context, lockID int) error

	// TryAcquire takes the lock if it is free and reports whether it did.
	TryAcquire(ctx context.Context, lockID int) (bool, error)

	Release(lockID int) error
}
