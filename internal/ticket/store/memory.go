package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"stagepass/internal/ticket/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

// InMemory is the mutex-backed ticket store.
type InMemory struct {
	mu      sync.RWMutex
	tickets map[id.TicketID]*models.Ticket
	byReg   map[id.RegistrationID]id.TicketID
	byToken map[string]id.TicketID
}

func NewInMemory() *InMemory {
	return &InMemory{
		tickets: make(map[id.TicketID]*models.Ticket),
		byReg:   make(map[id.RegistrationID]id.TicketID),
		byToken: make(map[string]id.TicketID),
	}
}

// Clear drops all tickets. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[id.TicketID]*models.Ticket)
	s.byReg = make(map[id.RegistrationID]id.TicketID)
	s.byToken = make(map[string]id.TicketID)
}

// Create inserts the ticket; a second ticket for the same registration
// returns sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReg[ticket.RegistrationID]; exists {
		return sentinel.ErrConflict
	}
	s.tickets[ticket.ID] = ticket.Clone()
	s.byReg[ticket.RegistrationID] = ticket.ID
	s.byToken[ticket.EntryToken] = ticket.ID
	return nil
}

// FindByID returns a copy of the ticket or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, ticketID id.TicketID) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return ticket.Clone(), nil
}

// FindByEntryToken resolves a presented token or sentinel.ErrNotFound.
func (s *InMemory) FindByEntryToken(_ context.Context, token string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticketID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.tickets[ticketID].Clone(), nil
}

// FindByRegistration returns the ticket for a registration or
// sentinel.ErrNotFound.
func (s *InMemory) FindByRegistration(_ context.Context, regID id.RegistrationID) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticketID, ok := s.byReg[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.tickets[ticketID].Clone(), nil
}

// ListByUser returns the user's tickets, newest first.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Ticket
	for _, ticket := range s.tickets {
		if ticket.UserID == userID {
			out = append(out, ticket.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

// SetCheckedIn stamps the check-in time. A ticket that is already checked in
// returns sentinel.ErrAlreadyUsed.
func (s *InMemory) SetCheckedIn(_ context.Context, ticketID id.TicketID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if ticket.CheckedInAt != nil {
		return sentinel.ErrAlreadyUsed
	}
	ticket.CheckedInAt = &now
	return nil
}
