package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	reservationserrors "fitbook/internal/reservations/errors"
	mongotx "fitbook/pkg/db/mongo"
	"fitbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memberSession struct {
	memberID  string
	sessionID string
}

type memoryReservationRepository struct {
	mu     sync.RWMutex
	byID   map[string]model.Reservation
	byPair map[memberSession]string
}

// NewMemoryReservationRepository returns an in-process ReservationRepository
// that enforces the (member, session) uniqueness the Mongo index provides.
// Writes made inside ExecuteTransaction are undone when fn fails.
func NewMemoryReservationRepository() ReservationRepository {
	return &memoryReservationRepository{
		byID:   make(map[string]model.Reservation),
		byPair: make(map[memberSession]string),
	}
}

func (r *memoryReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pair := memberSession{res.MemberID, res.SessionID}
	if _, exists := r.byPair[pair]; exists {
		return fmt.Errorf("%w: member %s session %s", reservationserrors.ErrDuplicate, res.MemberID, res.SessionID)
	}

	res.ID = primitive.NewObjectID().Hex()
	res.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.byID[res.ID] = *res
	r.byPair[pair] = res.ID

	created := *res
	mongotx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.remove(created)
	})
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrNotFound, id)
	}
	return &res, nil
}

func (r *memoryReservationRepository) FindByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[memberSession{memberID, sessionID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", reservationserrors.ErrNotFound, memberID, sessionID)
	}
	res := r.byID[id]
	return &res, nil
}

func (r *memoryReservationRepository) FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.page(ctx, func(res model.Reservation) bool { return res.SessionID == sessionID }, limit, offset)
}

func (r *memoryReservationRepository) FindByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.page(ctx, func(res model.Reservation) bool { return res.MemberID == memberID }, limit, offset)
}

func (r *memoryReservationRepository) page(ctx context.Context, match func(model.Reservation) bool, limit int, offset int64) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.Reservation, 0)
	for _, res := range r.byID {
		if match(res) {
			matched = append(matched, &res)
		}
	}
	slices.SortFunc(matched, func(a, b *model.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if offset >= int64(len(matched)) {
		return []*model.Reservation{}, nil
	}
	end := min(int(offset)+limit, len(matched))
	return matched[offset:end], nil
}

func (r *memoryReservationRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return r.count(ctx, func(res model.Reservation) bool { return res.SessionID == sessionID })
}

func (r *memoryReservationRepository) CountByMember(ctx context.Context, memberID string) (int64, error) {
	return r.count(ctx, func(res model.Reservation) bool { return res.MemberID == memberID })
}

func (r *memoryReservationRepository) count(ctx context.Context, match func(model.Reservation) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, res := range r.byID {
		if match(res) {
			n++
		}
	}
	return n, nil
}

func (r *memoryReservationRepository) Delete(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrNotFound, id)
	}
	r.remove(res)
	mongotx.OnRollback(ctx, func() { r.restore(res) })
	return &res, nil
}

func (r *memoryReservationRepository) DeleteByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPair[memberSession{memberID, sessionID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", reservationserrors.ErrNotFound, memberID, sessionID)
	}
	res := r.byID[id]
	r.remove(res)
	mongotx.OnRollback(ctx, func() { r.restore(res) })
	return &res, nil
}

func (r *memoryReservationRepository) remove(res model.Reservation) {
	delete(r.byID, res.ID)
	delete(r.byPair, memberSession{res.MemberID, res.SessionID})
}

func (r *memoryReservationRepository) restore(res model.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[res.ID] = res
	r.byPair[memberSession{res.MemberID, res.SessionID}] = res.ID
}

func (r *memoryReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.RunWithRollback(ctx, fn)
}
