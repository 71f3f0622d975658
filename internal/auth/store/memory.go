package store

import (
	"context"
	"strings"
	"sync"

	"stagepass/internal/auth/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory is the mutex-backed user store.
type InMemory struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Clear drops all users. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[id.UserID]*models.User)
	s.byEmail = make(map[string]id.UserID)
}

// CreateIfEmailAvailable inserts the user unless the email is taken
// (case-insensitive), in which case it returns sentinel.ErrAlreadyUsed.
func (s *InMemory) CreateIfEmailAvailable(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := s.byEmail[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.users[user.ID] = user.Clone()
	s.byEmail[key] = user.ID
	return nil
}

// FindByID returns a copy of the user or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return user.Clone(), nil
}

// FindByEmail returns a copy of the user or sentinel.ErrNotFound. Lookup is
// case-insensitive.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.users[userID].Clone(), nil
}
