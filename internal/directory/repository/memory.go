package repository

import (
	"context"
	"sync"

	"fitbook/pkg/model"
)

// MemoryDirectory is an in-process Directory. Tests and local tooling seed it
// with AddUser and AddCategory.
type MemoryDirectory struct {
	mu         sync.RWMutex
	users      map[string]model.User
	categories map[string]model.Category
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:      make(map[string]model.User),
		categories: make(map[string]model.Category),
	}
}

func (d *MemoryDirectory) AddUser(user model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *MemoryDirectory) AddCategory(category model.Category) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.categories[category.ID] = category
}

func (d *MemoryDirectory) GetUser(_ context.Context, id string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (d *MemoryDirectory) GetCategory(_ context.Context, id string) (*model.Category, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	category, ok := d.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &category, nil
}
