package models

import (
	"time"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// Registration is the aggregate root for a user's lottery entry.
//
// Invariants:
//   - Quantity is between 1 and the ticket type's per-person cap (checked at
//     construction; the cap lives on the ticket type)
//   - Status only moves along the transition table in status.go
//   - A user holds at most one active registration per event; the store
//     enforces this (unique partial index in Postgres, scan in memory)
//   - PaymentDeadline is set exactly when the draw marks the entry won
//   - CancelledAt is set exactly when the entry reaches cancelled
//
// Mutations follow the CanX/ApplyX split: services validate inside the
// store's Execute callback (under lock), then apply. The one-shot helpers
// (Cancel, Confirm, ...) combine both for callers that already hold the
// aggregate exclusively.
type Registration struct {
	ID           id.RegistrationID `json:"id"`
	EventID      id.EventID        `json:"event_id"`
	UserID       id.UserID         `json:"user_id"`
	TicketTypeID id.TicketTypeID   `json:"ticket_type_id"`
	Section      string            `json:"section"`
	Quantity     int               `json:"quantity"`
	Status       Status            `json:"status"`

	RegisteredAt    time.Time  `json:"registered_at"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	PaymentRef      string     `json:"payment_ref,omitempty"`

	// Version detects stale read-modify-write cycles. Stores bump it on
	// every successful update and reject mismatched writes.
	Version int64 `json:"version"`
}

// NewRegistration validates and builds a fresh entry in status registered.
// maxPerPerson comes from the ticket type being entered.
func NewRegistration(
	regID id.RegistrationID,
	eventID id.EventID,
	userID id.UserID,
	ticketTypeID id.TicketTypeID,
	section string,
	quantity, maxPerPerson int,
	now time.Time,
) (*Registration, error) {
	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if ticketTypeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ticket type id is required")
	}
	if quantity < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "quantity must be at least 1")
	}
	if maxPerPerson > 0 && quantity > maxPerPerson {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"quantity %d exceeds the per-person limit of %d", quantity, maxPerPerson)
	}
	return &Registration{
		ID:           regID,
		EventID:      eventID,
		UserID:       userID,
		TicketTypeID: ticketTypeID,
		Section:      section,
		Quantity:     quantity,
		Status:       StatusRegistered,
		RegisteredAt: now,
		Version:      1,
	}, nil
}

func (r *Registration) invalidTransition(to Status) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"registration is %s; cannot move to %s", r.Status, to)
}

// CanMarkWon checks that the draw may select this entry.
func (r *Registration) CanMarkWon() error {
	if !r.Status.CanTransitionTo(StatusWon) {
		return r.invalidTransition(StatusWon)
	}
	return nil
}

// ApplyWin transitions to won and stamps the payment deadline.
func (r *Registration) ApplyWin(paymentDeadline time.Time) {
	r.Status = StatusWon
	r.PaymentDeadline = &paymentDeadline
}

// CanMarkLost checks that the draw may pass over this entry.
func (r *Registration) CanMarkLost() error {
	if !r.Status.CanTransitionTo(StatusLost) {
		return r.invalidTransition(StatusLost)
	}
	return nil
}

// ApplyLoss transitions to lost.
func (r *Registration) ApplyLoss() {
	r.Status = StatusLost
}

// CanCancel checks whether the holder may withdraw at the given time.
// Allowed from registered at any point before the draw, and from won only
// while the payment deadline has not passed. Cancelled is handled by the
// service as an idempotent no-op before it gets here.
func (r *Registration) CanCancel(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return r.invalidTransition(StatusCancelled)
	}
	if r.Status == StatusWon && r.PaymentDeadline != nil && now.After(*r.PaymentDeadline) {
		return dErrors.New(dErrors.CodeDeadlineExceeded,
			"payment deadline has passed; the registration can no longer be cancelled")
	}
	return nil
}

// ApplyCancellation transitions to cancelled and stamps CancelledAt.
func (r *Registration) ApplyCancellation(now time.Time) {
	r.Status = StatusCancelled
	r.CancelledAt = &now
}

// Cancel validates and applies cancellation in one call.
func (r *Registration) Cancel(now time.Time) error {
	if err := r.CanCancel(now); err != nil {
		return err
	}
	r.ApplyCancellation(now)
	return nil
}

// CanConfirm checks that payment may still complete this entry.
func (r *Registration) CanConfirm(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusConfirmed) {
		return r.invalidTransition(StatusConfirmed)
	}
	if r.PaymentDeadline != nil && now.After(*r.PaymentDeadline) {
		return dErrors.New(dErrors.CodeDeadlineExceeded,
			"payment deadline has passed")
	}
	return nil
}

// ApplyConfirmation transitions to confirmed and records the payment
// reference.
func (r *Registration) ApplyConfirmation(now time.Time, paymentRef string) {
	r.Status = StatusConfirmed
	r.ConfirmedAt = &now
	r.PaymentRef = paymentRef
}

// CanMarkUsed checks that the ticket may be consumed at the venue.
func (r *Registration) CanMarkUsed() error {
	if !r.Status.CanTransitionTo(StatusUsed) {
		return r.invalidTransition(StatusUsed)
	}
	return nil
}

// ApplyUse transitions to used and stamps UsedAt.
func (r *Registration) ApplyUse(now time.Time) {
	r.Status = StatusUsed
	r.UsedAt = &now
}

// DeadlinePassed reports whether a won entry ran out its payment window.
func (r *Registration) DeadlinePassed(now time.Time) bool {
	return r.Status == StatusWon && r.PaymentDeadline != nil && now.After(*r.PaymentDeadline)
}

// Clone returns a deep copy so in-memory stores never leak shared pointers.
func (r *Registration) Clone() *Registration {
	clone := *r
	clone.PaymentDeadline = cloneTime(r.PaymentDeadline)
	clone.ConfirmedAt = cloneTime(r.ConfirmedAt)
	clone.CancelledAt = cloneTime(r.CancelledAt)
	clone.UsedAt = cloneTime(r.UsedAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
