// Package service issues entry tickets and runs venue check-in. Issuance
// happens inside the payment confirmation transaction; check-in consumes the
// backing registration exactly once.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skip2/go-qrcode"

	authmodels "stagepass/internal/auth/models"
	regmodels "stagepass/internal/registration/models"
	ticketmetrics "stagepass/internal/ticket/metrics"
	"stagepass/internal/ticket/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// qrSize is the edge length in pixels of generated QR codes.
const qrSize = 256

// TicketStore is the persistence contract for tickets.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, ticketID id.TicketID) (*models.Ticket, error)
	FindByEntryToken(ctx context.Context, token string) (*models.Ticket, error)
	FindByRegistration(ctx context.Context, regID id.RegistrationID) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Ticket, error)
	SetCheckedIn(ctx context.Context, ticketID id.TicketID, now time.Time) error
}

// UserDirectory resolves the holder snapshot at issuance.
type UserDirectory interface {
	GetUser(ctx context.Context, userID id.UserID) (*authmodels.User, error)
}

// RegistrationCheckIn consumes the backing registration at the gate.
type RegistrationCheckIn interface {
	MarkUsed(ctx context.Context, regID id.RegistrationID) (*regmodels.Registration, error)
}

// TicketService issues tickets and processes check-ins.
type TicketService struct {
	tickets TicketStore
	users   UserDirectory
	regs    RegistrationCheckIn
	logger  *slog.Logger
	metrics *ticketmetrics.Metrics
}

func NewTicketService(tickets TicketStore, users UserDirectory, regs RegistrationCheckIn, logger *slog.Logger, metrics *ticketmetrics.Metrics) *TicketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{
		tickets: tickets,
		users:   users,
		regs:    regs,
		logger:  logger,
		metrics: metrics,
	}
}

// BindRegistrations connects the registration lifecycle after construction.
// Confirmation issues tickets and check-in consumes registrations, so the
// two services reference each other and one side has to bind late.
func (s *TicketService) BindRegistrations(regs RegistrationCheckIn) {
	s.regs = regs
}

// IssueForRegistration creates the ticket for a freshly confirmed
// registration. The registration service calls it inside the confirmation
// transaction, so a failed issuance rolls the confirmation back.
func (s *TicketService) IssueForRegistration(ctx context.Context, reg *regmodels.Registration) error {
	user, err := s.users.GetUser(ctx, reg.UserID)
	if err != nil {
		return err
	}

	ticket, err := models.NewTicket(reg, user.Name, user.NationalID, requestcontext.Now(ctx))
	if err != nil {
		return err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "a ticket for this registration already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue ticket")
	}

	s.logger.InfoContext(ctx, "ticket issued",
		"ticket_id", ticket.ID.String(),
		"registration_id", reg.ID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	return nil
}

// ListTickets returns the caller's tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, userID id.UserID) ([]*models.Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tickets")
	}
	return tickets, nil
}

// GetTicket returns one of the caller's tickets. Another user's ticket reads
// as not found.
func (s *TicketService) GetTicket(ctx context.Context, userID id.UserID, ticketID id.TicketID) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
	}
	if ticket.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

// QRCode renders the entry token as a PNG for the holder's digital ticket.
func (s *TicketService) QRCode(ctx context.Context, userID id.UserID, ticketID id.TicketID) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(ticket.EntryToken, qrcode.Medium, qrSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render QR code")
	}
	return png, nil
}

// CheckIn consumes an entry token at the gate. The backing registration
// moves confirmed → used; both the registration transition and the ticket
// stamp reject a second presentation.
func (s *TicketService) CheckIn(ctx context.Context, entryToken string) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByEntryToken(ctx, entryToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.rejectCheckIn("unknown_token")
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown entry token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve entry token")
	}

	if ticket.CheckedIn() {
		s.rejectCheckIn("already_used")
		return nil, dErrors.New(dErrors.CodeConflict, "ticket has already been used")
	}

	if _, err := s.regs.MarkUsed(ctx, ticket.RegistrationID); err != nil {
		s.rejectCheckIn("registration_state")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.tickets.SetCheckedIn(ctx, ticket.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.rejectCheckIn("already_used")
			return nil, dErrors.New(dErrors.CodeConflict, "ticket has already been used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check-in")
	}
	ticket.CheckedInAt = &now

	s.logger.InfoContext(ctx, "ticket checked in",
		"ticket_id", ticket.ID.String(),
		"registration_id", ticket.RegistrationID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementCheckIn()
	}
	return ticket, nil
}

func (s *TicketService) rejectCheckIn(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejectedCheckIn(reason)
	}
}
