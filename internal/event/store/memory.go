package store

import (
	"context"
	"sort"
	"sync"

	"stagepass/internal/event/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory is the mutex-backed event catalog store.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.EventID]*models.Event)}
}

// Clear drops all events. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.EventID]*models.Event)
}

// Create inserts an event; duplicate IDs return sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return sentinel.ErrConflict
	}
	s.events[event.ID] = event.Clone()
	return nil
}

// FindByID returns a copy of the event or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return event.Clone(), nil
}

// List returns all events ordered by start time ascending.
func (s *InMemory) List(_ context.Context) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

// Execute atomically runs validate then mutate under the store lock.
func (s *InMemory) Execute(
	_ context.Context,
	eventID id.EventID,
	validate func(*models.Event) error,
	mutate func(*models.Event),
) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := event.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.events[eventID] = working

	return working.Clone(), nil
}
