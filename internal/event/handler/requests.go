package handler

import (
	"strings"
	"time"

	"stagepass/internal/event/models"
	dErrors "stagepass/pkg/domain-errors"
)

// TicketTypeRequest is one tier in a CreateEventRequest.
type TicketTypeRequest struct {
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Capacity     int    `json:"capacity"`
	MaxPerPerson int    `json:"max_per_person"`
}

// CreateEventRequest is the HTTP request body for POST /events. Timestamps
// are RFC 3339; the event model validates window ordering and tier limits.
type CreateEventRequest struct {
	Title                string              `json:"title"`
	Venue                string              `json:"venue"`
	StartsAt             string              `json:"starts_at"`
	RegistrationOpensAt  string              `json:"registration_opens_at"`
	RegistrationClosesAt string              `json:"registration_closes_at"`
	TicketTypes          []TicketTypeRequest `json:"ticket_types"`

	// Parsed values (populated by Validate)
	parsedStartsAt time.Time
	parsedOpensAt  time.Time
	parsedClosesAt time.Time
}

// Validate validates and parses the request.
func (r *CreateEventRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}

	var err error
	if r.parsedStartsAt, err = parseTimestamp("starts_at", r.StartsAt); err != nil {
		return err
	}
	if r.parsedOpensAt, err = parseTimestamp("registration_opens_at", r.RegistrationOpensAt); err != nil {
		return err
	}
	if r.parsedClosesAt, err = parseTimestamp("registration_closes_at", r.RegistrationClosesAt); err != nil {
		return err
	}

	if len(r.TicketTypes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one ticket type is required")
	}
	return nil
}

// WindowRequest is the HTTP request body for PUT /events/{eventID}/window.
type WindowRequest struct {
	RegistrationOpensAt  string `json:"registration_opens_at"`
	RegistrationClosesAt string `json:"registration_closes_at"`

	parsedOpensAt  time.Time
	parsedClosesAt time.Time
}

// Validate validates and parses the request.
func (r *WindowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.parsedOpensAt, err = parseTimestamp("registration_opens_at", r.RegistrationOpensAt); err != nil {
		return err
	}
	if r.parsedClosesAt, err = parseTimestamp("registration_closes_at", r.RegistrationClosesAt); err != nil {
		return err
	}
	return nil
}

// ParsedOpensAt returns the validated opening time.
func (r *WindowRequest) ParsedOpensAt() time.Time { return r.parsedOpensAt }

// ParsedClosesAt returns the validated closing time.
func (r *WindowRequest) ParsedClosesAt() time.Time { return r.parsedClosesAt }

func parseTimestamp(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", field)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"%s must be an RFC 3339 timestamp", field)
	}
	return ts, nil
}

// TicketTypeModels converts the request tiers into catalog models. IDs are
// assigned by the service.
func (r *CreateEventRequest) TicketTypeModels() []models.TicketType {
	out := make([]models.TicketType, 0, len(r.TicketTypes))
	for _, tt := range r.TicketTypes {
		out = append(out, models.TicketType{
			Name:         strings.TrimSpace(tt.Name),
			PriceCents:   tt.PriceCents,
			Capacity:     tt.Capacity,
			MaxPerPerson: tt.MaxPerPerson,
		})
	}
	return out
}

// ParsedStartsAt returns the validated start time.
func (r *CreateEventRequest) ParsedStartsAt() time.Time { return r.parsedStartsAt }

// ParsedOpensAt returns the validated registration opening time.
func (r *CreateEventRequest) ParsedOpensAt() time.Time { return r.parsedOpensAt }

// ParsedClosesAt returns the validated registration closing time.
func (r *CreateEventRequest) ParsedClosesAt() time.Time { return r.parsedClosesAt }
