package seatlock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"fitbook/internal/seatlock/repository"
	"fitbook/pkg/config"
	apperrors "fitbook/pkg/errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	retryInitialInterval = 5 * time.Millisecond
	retryMaxInterval     = 100 * time.Millisecond
	releaseTimeout       = 5 * time.Second
)

func SessionKey(sessionID string) string {
	return "session:" + sessionID
}

func InstructorKey(instructorID string) string {
	return "instructor:" + instructorID
}

// Locker serializes writers on named keys across every service instance that
// shares the lock store.
type Locker struct {
	repo repository.LockRepository
	cfg  *config.Config
}

func NewLocker(repo repository.LockRepository, cfg *config.Config) *Locker {
	return &Locker{
		repo: repo,
		cfg:  cfg,
	}
}

// Acquire takes every key, waiting up to SeatLockWait for each, and returns
// the lease holding them all. Keys are taken in sorted order so callers
// locking overlapping sets cannot deadlock. Instructor keys sort before
// session keys.
func (l *Locker) Acquire(ctx context.Context, keys ...string) (*Lease, error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	lease := &Lease{
		locker: l,
		owner:  uuid.NewString(),
		keys:   make([]string, 0, len(keys)),
	}
	for _, key := range keys {
		takenAt, err := l.acquireOne(ctx, key, lease.owner)
		if err != nil {
			lease.Release()
			return nil, err
		}
		expires := takenAt.Add(l.cfg.SeatLockTTL)
		if lease.expires.IsZero() || expires.Before(lease.expires) {
			lease.expires = expires
		}
		lease.keys = append(lease.keys, key)
	}

	return lease, nil
}

// acquireOne returns the time the winning attempt started, which bounds the
// lock's expiry from below.
func (l *Locker) acquireOne(ctx context.Context, key, owner string) (time.Time, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval

	attempts := 0
	takenAt, err := backoff.Retry(ctx, func() (time.Time, error) {
		attempts++
		startedAt := time.Now()
		err := l.repo.TryAcquire(ctx, key, owner, l.cfg.SeatLockTTL)
		if err == nil {
			return startedAt, nil
		}
		if errors.Is(err, repository.ErrLockHeld) {
			return time.Time{}, err
		}
		return time.Time{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(l.cfg.SeatLockWait))

	if err == nil {
		if attempts > 1 {
			l.cfg.Log.Debug("Lock acquired after contention", "key", key, "attempts", attempts)
		}
		return takenAt, nil
	}

	if errors.Is(err, repository.ErrLockHeld) {
		l.cfg.Log.Warn("Timed out waiting for lock",
			"key", key,
			"attempts", attempts,
			"wait", l.cfg.SeatLockWait,
		)
		return time.Time{}, apperrors.StoreUnavailable("Too many concurrent requests for this resource, retry the request",
			fmt.Errorf("lock %s not acquired within %s: %w", key, l.cfg.SeatLockWait, err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return time.Time{}, apperrors.Timeout("Request cancelled while waiting for lock")
	}
	return time.Time{}, apperrors.StoreUnavailable("Lock store is unavailable", err)
}

func (l *Locker) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := l.repo.Release(ctx, key, owner); err != nil {
		l.cfg.Log.Warn("Failed to release lock, it will expire on its own",
			"key", key,
			"ttl", l.cfg.SeatLockTTL,
			"error", err,
		)
	}
}
