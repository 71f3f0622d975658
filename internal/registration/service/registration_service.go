package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stagepass/internal/registration/events"
	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// CreateParams is the input to Create.
type CreateParams struct {
	EventID      id.EventID
	TicketTypeID id.TicketTypeID
	Quantity     int
}

// Create enters the caller into the lottery for one ticket type. The store's
// one-active-entry rule rejects a second concurrent entry for the same event
// regardless of how the requests interleave.
func (s *RegistrationService) Create(ctx context.Context, userID id.UserID, params CreateParams) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create",
		trace.WithAttributes(attribute.String("event_id", params.EventID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)

	event, err := s.catalog.GetEvent(ctx, params.EventID)
	if err != nil {
		return nil, err
	}
	if err := event.RegistrationOpen(now); err != nil {
		return nil, err
	}
	tt, err := event.TicketType(params.TicketTypeID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "ticket type not found for this event")
	}

	reg, err := models.NewRegistration(
		id.NewRegistrationID(),
		event.ID,
		userID,
		tt.ID,
		tt.Name,
		params.Quantity,
		tt.MaxPerPerson,
		now,
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateIfNoActive(ctx, reg); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict,
					"an active registration for this event already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registration")
		}
		return s.emitter.emit(ctx, events.Created(reg, now))
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return reg, nil
}

// List returns the caller's registrations, newest first. A non-nil status
// filters to that status; the storefront's cart is the won filter.
func (s *RegistrationService) List(ctx context.Context, userID id.UserID, status *models.Status) ([]*models.Registration, error) {
	regs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	if status == nil {
		return regs, nil
	}
	filtered := make([]*models.Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Status == *status {
			filtered = append(filtered, reg)
		}
	}
	return filtered, nil
}

// Get returns one of the caller's registrations. Another user's entry reads
// as not found so IDs cannot be probed.
func (s *RegistrationService) Get(ctx context.Context, userID id.UserID, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	if reg.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

// Cancel withdraws the caller's entry. Cancelling an already-cancelled entry
// succeeds without changing anything; cancelling a won entry after the
// payment deadline is rejected.
func (s *RegistrationService) Cancel(ctx context.Context, userID id.UserID, regID id.RegistrationID) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.cancel",
		trace.WithAttributes(attribute.String("registration_id", regID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)

	current, err := s.Get(ctx, userID, regID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.StatusCancelled {
		return current, nil
	}

	return s.transition(ctx, regID, models.StatusCancelled,
		func(r *models.Registration) error {
			if r.Status == models.StatusCancelled {
				return errAlreadyApplied
			}
			return r.CanCancel(now)
		},
		func(r *models.Registration) { r.ApplyCancellation(now) },
	)
}

// Confirm completes payment on a won entry, issuing the entry ticket in the
// same unit of work. A deadline that lapsed between winning and paying is
// rejected.
func (s *RegistrationService) Confirm(ctx context.Context, userID id.UserID, regID id.RegistrationID, paymentRef string) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.confirm",
		trace.WithAttributes(attribute.String("registration_id", regID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)

	if _, err := s.Get(ctx, userID, regID); err != nil {
		return nil, err
	}

	var confirmed *models.Registration
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		reg, err := s.transition(ctx, regID, models.StatusConfirmed,
			func(r *models.Registration) error { return r.CanConfirm(now) },
			func(r *models.Registration) { r.ApplyConfirmation(now, paymentRef) },
		)
		if err != nil {
			return err
		}
		if s.issuer != nil {
			if err := s.issuer.IssueForRegistration(ctx, reg); err != nil {
				return err
			}
		}
		confirmed = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// MarkWon is called by the draw for each selected entry. The payment deadline
// is stamped here so the winner's clock starts at draw time.
func (s *RegistrationService) MarkWon(ctx context.Context, regID id.RegistrationID, paymentDeadline time.Time) (*models.Registration, error) {
	return s.transition(ctx, regID, models.StatusWon,
		func(r *models.Registration) error { return r.CanMarkWon() },
		func(r *models.Registration) { r.ApplyWin(paymentDeadline) },
	)
}

// MarkLost is called by the draw for each entry that was not selected.
func (s *RegistrationService) MarkLost(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	return s.transition(ctx, regID, models.StatusLost,
		func(r *models.Registration) error { return r.CanMarkLost() },
		func(r *models.Registration) { r.ApplyLoss() },
	)
}

// MarkUsed consumes the entry at the venue gate. Only a confirmed entry can
// be used, and only once.
func (s *RegistrationService) MarkUsed(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, regID, models.StatusUsed,
		func(r *models.Registration) error { return r.CanMarkUsed() },
		func(r *models.Registration) { r.ApplyUse(now) },
	)
}

// CancelExpired moves one won entry whose payment deadline has lapsed to
// cancelled. The sweeper drives it; an entry that was paid or withdrawn in
// the meantime is left alone.
func (s *RegistrationService) CancelExpired(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	reg, err := s.transition(ctx, regID, models.StatusCancelled,
		func(r *models.Registration) error {
			if !r.DeadlinePassed(now) {
				return errAlreadyApplied
			}
			return nil
		},
		func(r *models.Registration) { r.ApplyCancellation(now) },
	)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementExpiredCancellation()
	}
	return reg, nil
}

// ListExpiredWon returns won entries whose payment deadline lies before now.
func (s *RegistrationService) ListExpiredWon(ctx context.Context, now time.Time, limit int) ([]*models.Registration, error) {
	regs, err := s.store.ListExpiredWon(ctx, now, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired registrations")
	}
	return regs, nil
}

// ListByEventAndStatus returns all of an event's entries in one status,
// oldest first. The draw reads its candidate pool through this.
func (s *RegistrationService) ListByEventAndStatus(ctx context.Context, eventID id.EventID, status models.Status) ([]*models.Registration, error) {
	regs, err := s.store.ListByEventAndStatus(ctx, eventID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

// errAlreadyApplied signals inside a transition callback that the target
// state was reached concurrently and the call should return the current row
// unchanged instead of failing.
var errAlreadyApplied = errors.New("transition already applied")

// transition runs one validated status move under the store's row lock and
// emits the change event on success.
func (s *RegistrationService) transition(
	ctx context.Context,
	regID id.RegistrationID,
	to models.Status,
	validate func(*models.Registration) error,
	mutate func(*models.Registration),
) (*models.Registration, error) {
	now := requestcontext.Now(ctx)

	var from models.Status
	reg, err := s.store.Execute(ctx, regID,
		func(r *models.Registration) error {
			from = r.Status
			return validate(r)
		},
		mutate,
	)
	if errors.Is(err, errAlreadyApplied) {
		return s.store.FindByID(ctx, regID)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			s.metrics.IncrementInvalidTransition()
		}
		return nil, err
	}

	if err := s.emitter.emit(ctx, events.StatusChanged(reg, from, now)); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to))
	}
	return reg, nil
}
