package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	regmodels "stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// Ticket is the entry document issued when a won registration is paid. The
// holder fields are a snapshot taken at issuance so later account edits
// cannot change who the ticket admits; venue staff match them against
// verified identity claims.
type Ticket struct {
	ID             id.TicketID       `json:"id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	EventID        id.EventID        `json:"event_id"`
	UserID         id.UserID         `json:"user_id"`
	HolderName     string            `json:"holder_name"`
	HolderIDNumber string            `json:"-"`
	Section        string            `json:"section"`
	Quantity       int               `json:"quantity"`

	// EntryToken is the opaque value encoded into the QR code. It carries no
	// structure; entry validity lives server-side.
	EntryToken string `json:"entry_token"`

	IssuedAt    time.Time  `json:"issued_at"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

const entryTokenBytes = 32

// NewTicket builds a ticket for a confirmed registration with a fresh random
// entry token.
func NewTicket(reg *regmodels.Registration, holderName, holderIDNumber string, now time.Time) (*Ticket, error) {
	if holderName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "holder name is required")
	}

	token, err := newEntryToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate entry token")
	}

	return &Ticket{
		ID:             id.NewTicketID(),
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		HolderName:     holderName,
		HolderIDNumber: holderIDNumber,
		Section:        reg.Section,
		Quantity:       reg.Quantity,
		EntryToken:     token,
		IssuedAt:       now,
	}, nil
}

func newEntryToken() (string, error) {
	buf := make([]byte, entryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CheckedIn reports whether the ticket has been presented at the gate.
func (t *Ticket) CheckedIn() bool {
	return t.CheckedInAt != nil
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	clone := *t
	if t.CheckedInAt != nil {
		at := *t.CheckedInAt
		clone.CheckedInAt = &at
	}
	return &clone
}
