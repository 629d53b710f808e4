package emailauth

import (
	"context"
	"sync"
	"time"
)

// MemoryUserStore is an in-process UserStore for tests, development and
// single-process deployments.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*User

	now func() time.Time
}

// NewMemoryUserStore returns an empty in-process user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[string]*User),
		now:   time.Now,
	}
}

// Get returns the user for the email without creating one.
func (s *MemoryUserStore) Get(_ context.Context, email string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return User{}, false, nil
	}
	return *u, true, nil
}

// GetOrCreate returns the existing user or creates one under the store lock,
// so concurrent calls for the same email yield a single record.
func (s *MemoryUserStore) GetOrCreate(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[email]; ok {
		return *u, nil
	}
	u := &User{
		Email:     email,
		CreatedAt: s.now(),
	}
	s.users[email] = u
	return *u, nil
}

// TouchLastLogin sets LastLogin to now, never moving it backwards.
func (s *MemoryUserStore) TouchLastLogin(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return nil
	}
	now := s.now()
	if u.LastLogin == nil || now.After(*u.LastLogin) {
		u.LastLogin = &now
	}
	return nil
}
