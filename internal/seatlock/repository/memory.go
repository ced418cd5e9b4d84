package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitbook/pkg/clock"
	"fitbook/pkg/model"
)

type memoryLockRepository struct {
	mu    sync.Mutex
	clock clock.Clock
	locks map[string]model.SessionLock
}

// NewMemoryLockRepository returns a process-local LockRepository with the same
// takeover-on-expiry semantics as the Mongo implementation.
func NewMemoryLockRepository(clk clock.Clock) LockRepository {
	if clk == nil {
		clk = clock.System()
	}
	return &memoryLockRepository{
		clock: clk,
		locks: make(map[string]model.SessionLock),
	}
}

func (r *memoryLockRepository) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if held, ok := r.locks[key]; ok && held.ExpiresAt.After(now) {
		return ErrLockHeld
	}
	r.locks[key] = model.SessionLock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return nil
}

func (r *memoryLockRepository) Fence(ctx context.Context, key, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.locks[key]
	if !ok || held.Owner != owner {
		return fmt.Errorf("%w: %s", ErrLockLost, key)
	}
	held.Fence++
	r.locks[key] = held
	return nil
}

func (r *memoryLockRepository) Release(_ context.Context, key, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[key]; ok && held.Owner == owner {
		delete(r.locks, key)
	}
	return nil
}
