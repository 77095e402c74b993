// Package memory holds process-local implementations of the storage ports.
// Everything here is lost when the process exits.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

// UserStore keeps accounts in maps guarded by a single RWMutex, which makes
// every operation atomic.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Account
	byUsername map[string]string
	byEmail    map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*domain.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	email := strings.ToLower(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, domain.ErrEmailAlreadyRegistered
	}
	if _, ok := s.byUsername[account.Username]; ok {
		return nil, domain.ErrUsernameTaken
	}

	c := account.Clone()
	c.ID = uuid.NewString()
	c.Email = email
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	s.byID[c.ID] = c
	s.byUsername[c.Username] = c.ID
	s.byEmail[email] = c.ID
	return c.Clone(), nil
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byUsername[username])
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byEmail[strings.ToLower(email)])
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok {
		return domain.ErrUserNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes an account. Only used by admin tooling and tests.
func (s *UserStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(s.byID, accountID)
	delete(s.byUsername, a.Username)
	delete(s.byEmail, a.Email)
	return nil
}

// caller holds s.mu
func (s *UserStore) lookup(id string) (*domain.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return a.Clone(), nil
}
