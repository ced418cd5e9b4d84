package seatlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"fitbook/internal/seatlock/repository"
	mongotx "fitbook/pkg/db/mongo"
	apperrors "fitbook/pkg/errors"
)

// leaseMarginDivisor reserves a tenth of the TTL between the end of a bounded
// operation and the moment another owner may take the keys over.
const leaseMarginDivisor = 10

// Lease is a set of keys held by one owner until Release or expiry. Nothing
// renews it: work done under a lease is bounded with Bound and committed only
// after Fence succeeds in the same transaction.
type Lease struct {
	locker  *Locker
	owner   string
	keys    []string
	expires time.Time
	once    sync.Once
}

// Expires is the earliest time any of the keys may be taken over.
func (l *Lease) Expires() time.Time {
	return l.expires
}

// Bound derives a context that is cancelled before the lease can lapse, so
// store calls made under the lease give up instead of outliving it.
func (l *Lease) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if len(l.keys) == 0 {
		return context.WithCancel(ctx)
	}
	margin := l.locker.cfg.SeatLockTTL / leaseMarginDivisor
	return context.WithDeadline(ctx, l.expires.Add(-margin))
}

// Fence proves, inside the caller's transaction, that every key is still held
// by this lease. A lapsed lease fails with STORE_UNAVAILABLE and the
// transaction must abort. Transient conflicts are returned as is so the
// transaction can be re-run.
func (l *Lease) Fence(ctx context.Context) error {
	for _, key := range l.keys {
		if err := l.locker.repo.Fence(ctx, key, l.owner); err != nil {
			if errors.Is(err, repository.ErrLockLost) {
				l.locker.cfg.Log.Warn("Lock lease lapsed before commit",
					"key", key,
					"ttl", l.locker.cfg.SeatLockTTL,
				)
				return apperrors.StoreUnavailable("Lock lease expired before the write committed, retry the request", err)
			}
			if mongotx.IsTransient(err) {
				return err
			}
			return apperrors.StoreUnavailable("Failed to confirm lock ownership", err)
		}
	}
	return nil
}

// Release drops every key still held. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		for i := len(l.keys) - 1; i >= 0; i-- {
			l.locker.release(l.keys[i], l.owner)
		}
	})
}
