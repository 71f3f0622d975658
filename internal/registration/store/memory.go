package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory is the mutex-backed registration store used by unit tests and
// local development. Atomicity of check-then-mutate comes from holding the
// write lock across both callbacks in Execute, mirroring what the Postgres
// store does with SELECT ... FOR UPDATE.
type InMemory struct {
	mu   sync.RWMutex
	regs map[id.RegistrationID]*models.Registration
}

func NewInMemory() *InMemory {
	return &InMemory{regs: make(map[id.RegistrationID]*models.Registration)}
}

// Clear drops all registrations. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = make(map[id.RegistrationID]*models.Registration)
}

// CreateIfNoActive inserts the registration unless the user already holds an
// active (registered/won/confirmed) entry for the same event, in which case
// it returns sentinel.ErrConflict.
func (s *InMemory) CreateIfNoActive(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.regs {
		if existing.UserID == reg.UserID && existing.EventID == reg.EventID && existing.Status.IsActive() {
			return sentinel.ErrConflict
		}
	}
	s.regs[reg.ID] = reg.Clone()
	return nil
}

// FindByID returns a copy of the registration or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.regs[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return reg.Clone(), nil
}

// ListByUser returns the user's registrations, most recent first.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Registration
	for _, reg := range s.regs {
		if reg.UserID == userID {
			out = append(out, reg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

// ListByEventAndStatus returns all registrations for an event in the given
// status, ordered oldest first so draw selection is reproducible.
func (s *InMemory) ListByEventAndStatus(_ context.Context, eventID id.EventID, status models.Status) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Registration
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.Status == status {
			out = append(out, reg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

// ListExpiredWon returns up to limit won registrations whose payment
// deadline has passed. The sweeper cancels them.
func (s *InMemory) ListExpiredWon(_ context.Context, now time.Time, limit int) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Registration
	for _, reg := range s.regs {
		if reg.DeadlinePassed(now) {
			out = append(out, reg.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Execute atomically runs validate then mutate against the stored
// registration, holding the write lock throughout. The mutated copy gets a
// bumped version and is returned.
func (s *InMemory) Execute(
	_ context.Context,
	regID id.RegistrationID,
	validate func(*models.Registration) error,
	mutate func(*models.Registration),
) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := reg.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.Version++
	s.regs[regID] = working

	return working.Clone(), nil
}

// Update persists a registration read earlier, rejecting stale versions with
// sentinel.ErrConflict. Prefer Execute; this exists for multi-entity flows
// (the draw) that mutate outside the store lock.
func (s *InMemory) Update(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.regs[reg.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != reg.Version {
		return sentinel.ErrConflict
	}
	updated := reg.Clone()
	updated.Version++
	s.regs[reg.ID] = updated
	reg.Version = updated.Version
	return nil
}
