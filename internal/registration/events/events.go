// Package events defines the change events appended to the outbox whenever a
// registration is created or moves through its lifecycle. Consumers read them
// from the Kafka topic; nothing in this process mutates state in response.
package events

import (
	"context"
	"time"

	id "stagepass/pkg/domain"
	"stagepass/internal/registration/models"
)

// Types of registration change events.
const (
	TypeRegistrationCreated = "registration.created"
	TypeStatusChanged       = "registration.status_changed"
)

// ChangeEvent is the payload published for every registration mutation.
type ChangeEvent struct {
	Type           string            `json:"type"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	EventID        id.EventID        `json:"event_id"`
	UserID         id.UserID         `json:"user_id"`
	From           models.Status     `json:"from,omitempty"`
	To             models.Status     `json:"to"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// Created builds the creation event for a fresh registration.
func Created(reg *models.Registration, now time.Time) ChangeEvent {
	return ChangeEvent{
		Type:           TypeRegistrationCreated,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		To:             reg.Status,
		OccurredAt:     now,
	}
}

// StatusChanged builds the transition event for a status move.
func StatusChanged(reg *models.Registration, from models.Status, now time.Time) ChangeEvent {
	return ChangeEvent{
		Type:           TypeStatusChanged,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		From:           from,
		To:             reg.Status,
		OccurredAt:     now,
	}
}

// Publisher delivers change events. The postgres store satisfies it with the
// transactional outbox; unit tests use the generated mock or a recorder.
type Publisher interface {
	Emit(ctx context.Context, event ChangeEvent) error
}
