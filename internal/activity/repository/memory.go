package repository

import (
	"context"
	"slices"
	"sync"

	"fitbook/pkg/model"
)

type memoryActivityRepository struct {
	mu      sync.Mutex
	entries []model.Activity
	seen    map[string]struct{}
}

func NewMemoryActivityRepository() ActivityRepository {
	return &memoryActivityRepository{
		seen: make(map[string]struct{}),
	}
}

func (r *memoryActivityRepository) Append(ctx context.Context, a *model.Activity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[a.EventID]; dup {
		return false, nil
	}
	r.seen[a.EventID] = struct{}{}
	r.entries = append(r.entries, *a)
	return true, nil
}

func (r *memoryActivityRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]*model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Activity, 0)
	for _, a := range r.entries {
		if a.SessionID == sessionID {
			out = append(out, &a)
		}
	}
	slices.SortStableFunc(out, func(a, b *model.Activity) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
