package handler

import (
	"strings"

	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /registrations.
type CreateRequest struct {
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`

	// Parsed values (populated by Validate)
	parsedEventID      id.EventID
	parsedTicketTypeID id.TicketTypeID
}

// Validate validates and parses the request.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.EventID = strings.TrimSpace(r.EventID)
	if r.EventID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "event_id is required")
	}
	eventID, err := id.ParseEventID(r.EventID)
	if err != nil {
		return err
	}
	r.parsedEventID = eventID

	r.TicketTypeID = strings.TrimSpace(r.TicketTypeID)
	if r.TicketTypeID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "ticket_type_id is required")
	}
	ticketTypeID, err := id.ParseTicketTypeID(r.TicketTypeID)
	if err != nil {
		return err
	}
	r.parsedTicketTypeID = ticketTypeID

	if r.Quantity < 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "quantity must be at least 1")
	}
	return nil
}

// ParsedEventID returns the validated event ID.
func (r *CreateRequest) ParsedEventID() id.EventID {
	return r.parsedEventID
}

// ParsedTicketTypeID returns the validated ticket type ID.
func (r *CreateRequest) ParsedTicketTypeID() id.TicketTypeID {
	return r.parsedTicketTypeID
}

// ConfirmRequest is the HTTP request body for POST /registrations/{id}/confirm.
type ConfirmRequest struct {
	PaymentRef string `json:"payment_ref"`
}

// Validate validates the request.
func (r *ConfirmRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.PaymentRef = strings.TrimSpace(r.PaymentRef)
	if r.PaymentRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "payment_ref is required")
	}
	if len(r.PaymentRef) > 128 {
		return dErrors.New(dErrors.CodeInvalidInput, "payment_ref must be at most 128 characters")
	}
	return nil
}

// parseStatusFilter turns the optional ?status= query into a status pointer.
func parseStatusFilter(raw string) (*models.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	status, err := models.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
