package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stagepass/internal/event/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// EventStore is the catalog persistence contract, satisfied by the memory
// and Postgres stores.
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	Execute(ctx context.Context, eventID id.EventID,
		validate func(*models.Event) error, mutate func(*models.Event)) (*models.Event, error)
}

// EventService manages the concert catalog and the per-event draw state.
type EventService struct {
	events EventStore
	logger *slog.Logger
}

func NewEventService(events EventStore, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{events: events, logger: logger}
}

// CreateEventParams is the input to CreateEvent.
type CreateEventParams struct {
	Title                string
	Venue                string
	StartsAt             time.Time
	RegistrationOpensAt  time.Time
	RegistrationClosesAt time.Time
	TicketTypes          []models.TicketType
}

// CreateEvent validates and stores a new event with its ticket types.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (*models.Event, error) {
	for i := range params.TicketTypes {
		if params.TicketTypes[i].ID.IsNil() {
			params.TicketTypes[i].ID = id.NewTicketTypeID()
		}
	}

	event, err := models.NewEvent(
		id.NewEventID(),
		strings.TrimSpace(params.Title),
		strings.TrimSpace(params.Venue),
		params.StartsAt,
		params.RegistrationOpensAt,
		params.RegistrationClosesAt,
		params.TicketTypes,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "event already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
	}

	s.logger.InfoContext(ctx, "event created",
		"event_id", event.ID.String(),
		"title", event.Title,
	)
	return event, nil
}

// GetEvent retrieves one event with its ticket types.
func (s *EventService) GetEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event id is required")
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return event, nil
}

// ListEvents returns the catalog ordered by start time.
func (s *EventService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// ListUpcoming returns events that have not started yet, soonest first. The
// storefront catalog view uses this; past concerts stay reachable by ID.
func (s *EventService) ListUpcoming(ctx context.Context) ([]*models.Event, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	upcoming := make([]*models.Event, 0, len(events))
	for _, event := range events {
		if event.StartsAt.After(now) {
			upcoming = append(upcoming, event)
		}
	}
	return upcoming, nil
}

// RescheduleWindow moves an event's registration window, opening it early or
// extending a closing one. Rejected once the draw has run.
func (s *EventService) RescheduleWindow(ctx context.Context, eventID id.EventID, opensAt, closesAt time.Time) (*models.Event, error) {
	if !opensAt.Before(closesAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"registration window must open before it closes")
	}
	now := requestcontext.Now(ctx)
	event, err := s.events.Execute(ctx, eventID,
		func(e *models.Event) error {
			return e.CanRescheduleWindow()
		},
		func(e *models.Event) {
			e.ApplyWindow(opensAt, closesAt, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "registration window rescheduled",
		"event_id", eventID.String(),
		"opens_at", opensAt,
		"closes_at", closesAt,
	)
	return event, nil
}

// CompleteDraw marks the event's draw as run and force-closes the
// registration window. The draw service calls this before reading the entry
// pool, so creates racing the draw are shut out; the event row lock makes a
// second concurrent draw fail with conflict.
func (s *EventService) CompleteDraw(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	now := requestcontext.Now(ctx)
	event, err := s.events.Execute(ctx, eventID,
		func(e *models.Event) error {
			return e.CanCompleteDraw()
		},
		func(e *models.Event) {
			e.ApplyDrawCompleted(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, err
	}
	return event, nil
}
