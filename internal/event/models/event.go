package models

import (
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
)

// TicketType is one tier of an event (section, price, draw capacity).
//
// Invariants:
//   - Name is non-empty
//   - Capacity >= 1: seats available to the draw for this tier
//   - MaxPerPerson >= 1: quantity cap enforced on registration creation
type TicketType struct {
	ID           id.TicketTypeID `json:"id"`
	EventID      id.EventID      `json:"event_id"`
	Name         string          `json:"name"`
	PriceCents   int64           `json:"price_cents"`
	Capacity     int             `json:"capacity"`
	MaxPerPerson int             `json:"max_per_person"`
}

// Event is the aggregate root for a concert.
//
// Invariants:
//   - Title is non-empty and at most 256 characters
//   - RegistrationOpensAt precedes RegistrationClosesAt
//   - The draw runs at most once; DrawCompletedAt is set exactly then
//   - Registrations are only accepted inside the window and before the draw
type Event struct {
	ID    id.EventID `json:"id"`
	Title string     `json:"title"`
	Venue string     `json:"venue"`

	StartsAt             time.Time  `json:"starts_at"`
	RegistrationOpensAt  time.Time  `json:"registration_opens_at"`
	RegistrationClosesAt time.Time  `json:"registration_closes_at"`
	DrawCompletedAt      *time.Time `json:"draw_completed_at,omitempty"`

	TicketTypes []TicketType `json:"ticket_types"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEvent validates and builds an event with its ticket types.
func NewEvent(
	eventID id.EventID,
	title, venue string,
	startsAt, opensAt, closesAt time.Time,
	ticketTypes []TicketType,
	now time.Time,
) (*Event, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event title cannot be empty")
	}
	if len(title) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event title must be 256 characters or less")
	}
	if !opensAt.Before(closesAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"registration window must open before it closes")
	}
	if len(ticketTypes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event needs at least one ticket type")
	}
	for i := range ticketTypes {
		tt := &ticketTypes[i]
		if tt.Name == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "ticket type name cannot be empty")
		}
		if tt.Capacity < 1 {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"ticket type %q needs a capacity of at least 1", tt.Name)
		}
		if tt.MaxPerPerson < 1 {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"ticket type %q needs a per-person limit of at least 1", tt.Name)
		}
		tt.EventID = eventID
	}
	return &Event{
		ID:                   eventID,
		Title:                title,
		Venue:                venue,
		StartsAt:             startsAt,
		RegistrationOpensAt:  opensAt,
		RegistrationClosesAt: closesAt,
		TicketTypes:          ticketTypes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Drawn reports whether the draw has already run.
func (e *Event) Drawn() bool {
	return e.DrawCompletedAt != nil
}

// RegistrationOpen checks that a new lottery entry is currently acceptable.
func (e *Event) RegistrationOpen(now time.Time) error {
	if e.Drawn() {
		return dErrors.New(dErrors.CodeConflict, "the draw for this event has already run")
	}
	if now.Before(e.RegistrationOpensAt) {
		return dErrors.New(dErrors.CodeConflict, "registration has not opened yet")
	}
	if now.After(e.RegistrationClosesAt) {
		return dErrors.New(dErrors.CodeConflict, "registration has closed")
	}
	return nil
}

// TicketType returns the tier by ID or sentinel.ErrNotFound.
func (e *Event) TicketType(ticketTypeID id.TicketTypeID) (*TicketType, error) {
	for i := range e.TicketTypes {
		if e.TicketTypes[i].ID == ticketTypeID {
			return &e.TicketTypes[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// CanRescheduleWindow checks that the registration window may still move.
// Once the draw has run the window is final.
func (e *Event) CanRescheduleWindow() error {
	if e.Drawn() {
		return dErrors.New(dErrors.CodeConflict, "the draw for this event has already run")
	}
	return nil
}

// ApplyWindow moves the registration window.
func (e *Event) ApplyWindow(opensAt, closesAt, now time.Time) {
	e.RegistrationOpensAt = opensAt
	e.RegistrationClosesAt = closesAt
	e.UpdatedAt = now
}

// CanCompleteDraw checks that the draw may run now.
func (e *Event) CanCompleteDraw() error {
	if e.Drawn() {
		return dErrors.New(dErrors.CodeConflict, "the draw for this event has already run")
	}
	return nil
}

// ApplyDrawCompleted records the draw moment. Also force-closes the
// registration window in case the draw was triggered early.
func (e *Event) ApplyDrawCompleted(now time.Time) {
	e.DrawCompletedAt = &now
	if e.RegistrationClosesAt.After(now) {
		e.RegistrationClosesAt = now
	}
	e.UpdatedAt = now
}

// Clone returns a deep copy so in-memory stores never leak shared state.
func (e *Event) Clone() *Event {
	clone := *e
	if e.DrawCompletedAt != nil {
		t := *e.DrawCompletedAt
		clone.DrawCompletedAt = &t
	}
	clone.TicketTypes = append([]TicketType(nil), e.TicketTypes...)
	return &clone
}
