// Package domain holds typed identifiers and small domain primitives shared
// across services. IDs are distinct types over uuid.UUID so the compiler
// rejects cross-entity mixups (passing a UserID where an EventID is expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "stagepass/pkg/domain-errors"
)

// Typed identifiers. Construct via the New*/Parse* helpers; conversion from a
// raw uuid.UUID is allowed for stores and tests.
type (
	UserID         uuid.UUID
	EventID        uuid.UUID
	TicketTypeID   uuid.UUID
	RegistrationID uuid.UUID
	TicketID       uuid.UUID
	DrawID         uuid.UUID
)

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewEventID() EventID               { return EventID(uuid.New()) }
func NewTicketTypeID() TicketTypeID     { return TicketTypeID(uuid.New()) }
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }
func NewTicketID() TicketID             { return TicketID(uuid.New()) }
func NewDrawID() DrawID                 { return DrawID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id TicketTypeID) String() string   { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id TicketID) String() string       { return uuid.UUID(id).String() }
func (id DrawID) String() string         { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TicketTypeID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TicketID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DrawID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Parsing happens at trust boundaries (HTTP, storage) so the
// rest of the code can assume well-formed identifiers.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be the nil uuid")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	parsed, err := parseUUID(s, "user")
	return UserID(parsed), err
}

func ParseEventID(s string) (EventID, error) {
	parsed, err := parseUUID(s, "event")
	return EventID(parsed), err
}

func ParseTicketTypeID(s string) (TicketTypeID, error) {
	parsed, err := parseUUID(s, "ticket type")
	return TicketTypeID(parsed), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	parsed, err := parseUUID(s, "registration")
	return RegistrationID(parsed), err
}

func ParseTicketID(s string) (TicketID, error) {
	parsed, err := parseUUID(s, "ticket")
	return TicketID(parsed), err
}

func ParseDrawID(s string) (DrawID, error) {
	parsed, err := parseUUID(s, "draw")
	return DrawID(parsed), err
}
