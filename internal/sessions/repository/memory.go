package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	sessionserrors "fitbook/internal/sessions/errors"
	mongotx "fitbook/pkg/db/mongo"
	"fitbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepository returns an in-process SessionRepository. Its
// ExecuteTransaction undoes writes when fn fails; callers rely on the seat lock
// for isolation, as they do against Mongo.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]model.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *memorySessionRepository) Create(ctx context.Context, s *model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = primitive.NewObjectID().Hex()
	now := r.now().Truncate(time.Millisecond)
	s.CreatedAt = now
	s.UpdatedAt = now
	r.sessions[s.ID] = *s

	id := s.ID
	mongotx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sessions, id)
	})
	return nil
}

func (r *memorySessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	return &s, nil
}

func (r *memorySessionRepository) sorted(match func(model.Session) bool) []*model.Session {
	out := make([]*model.Session, 0)
	for _, s := range r.sessions {
		if match(s) {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *model.Session) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
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
	return out
}

func (r *memorySessionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted(func(model.Session) bool { return true })
	if offset >= int64(len(all)) {
		return []*model.Session{}, nil
	}
	end := min(int(offset)+limit, len(all))
	return all[offset:end], nil
}

func (r *memorySessionRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.sessions)), nil
}

func (r *memorySessionRepository) FindByInstructor(ctx context.Context, instructorID string, from, to *time.Time) ([]*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(s model.Session) bool {
		if s.InstructorID != instructorID {
			return false
		}
		if to != nil && !s.StartsAt.Before(*to) {
			return false
		}
		if from != nil && !s.EndsAt.After(*from) {
			return false
		}
		return true
	}), nil
}

func (r *memorySessionRepository) Update(ctx context.Context, id string, s *model.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !primitive.IsValidObjectID(id) {
		return fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	s.ID = id
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = r.now().Truncate(time.Millisecond)
	r.sessions[id] = *s
	mongotx.OnRollback(ctx, func() { r.restore(existing) })
	return nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !primitive.IsValidObjectID(id) {
		return fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", sessionserrors.ErrNotFound, id)
	}
	delete(r.sessions, id)
	mongotx.OnRollback(ctx, func() { r.restore(existing) })
	return nil
}

func (r *memorySessionRepository) restore(s model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *memorySessionRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.RunWithRollback(ctx, fn)
}
