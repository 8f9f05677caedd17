package lock

import (
	"context"
)

// Manager hands out named locks shared by every server process. Locks for the
// same name are re-entrant within a single Manager, so callers still need local
// synchronization between goroutines.
type Manager interface {
	// Create returns an unlocked lock for name
	Create(ctx context.Context, name string) (DistributedLock, error)
}

// DistributedLock is a handle to a lock held across processes
type DistributedLock interface {
	// Acquire blocks until the lock is held or ctx is done.
	//
	// The returned channel closes once the lock is lost, either through
	// Unlock, ctx cancellation or the backend losing track of ownership.
	Acquire(ctx context.Context) (<-chan struct{}, error)

	// Unlock releases the lock. It's a no-op when the lock isn't held.
	Unlock(ctx context.Context) error

	// IsLocked reports whether this handle currently holds the lock
	IsLocked() bool
}
