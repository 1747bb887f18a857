// Package usertest provides an in-memory user.Repository for tests.
package usertest

import (
	"context"
	"sync"

	"github.com/mkrupp/store/internal/domain"
	"github.com/mkrupp/store/internal/repo/user"
)

// MemoryRepository is a mutex-guarded user.Repository keyed by login id.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[string]domain.User
	closed bool

	// Err, when set, is returned by every call.
	Err error
}

var _ user.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]domain.User)}
}

// Factory returns a user.RepositoryFactory that always yields r.
func (r *MemoryRepository) Factory() user.RepositoryFactory {
	return func(context.Context) (user.Repository, error) {
		return r, nil
	}
}

// FindByLoginID implements user.Repository.
func (r *MemoryRepository) FindByLoginID(_ context.Context, loginID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	u, ok := r.users[loginID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return &u, nil
}

// Insert implements user.Repository.
func (r *MemoryRepository) Insert(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	if _, ok := r.users[u.LoginID]; ok {
		return domain.ErrDuplicateLogin
	}

	r.users[u.LoginID] = *u

	return nil
}

// Close implements user.Repository.
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	return nil
}

// Len returns the number of stored users.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

// Closed reports whether Close was called.
func (r *MemoryRepository) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}
