// Package service owns every mutation of lottery registrations. All reads
// and writes of registration state flow through this single service, so the
// transition table, the one-active-entry rule, and the change-event stream
// cannot be bypassed by individual call sites.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	eventmodels "stagepass/internal/event/models"
	"stagepass/internal/registration/events"
	regmetrics "stagepass/internal/registration/metrics"
	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
)

// RegistrationStore is the persistence contract, satisfied by the memory and
// Postgres stores. Execute must hold exclusive access to the row across both
// callbacks.
type RegistrationStore interface {
	CreateIfNoActive(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Registration, error)
	ListByEventAndStatus(ctx context.Context, eventID id.EventID, status models.Status) ([]*models.Registration, error)
	ListExpiredWon(ctx context.Context, now time.Time, limit int) ([]*models.Registration, error)
	Execute(ctx context.Context, regID id.RegistrationID,
		validate func(*models.Registration) error, mutate func(*models.Registration)) (*models.Registration, error)
}

// Catalog resolves events and their ticket types. Implemented by the event
// service.
type Catalog interface {
	GetEvent(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
}

// TicketIssuer creates the entry ticket when a won registration is paid.
// Implemented by the ticket service; runs inside the confirmation
// transaction.
type TicketIssuer interface {
	IssueForRegistration(ctx context.Context, reg *models.Registration) error
}

// StoreTx runs a function inside one atomic unit of work.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type serviceConfig struct {
	logger    *slog.Logger
	metrics   *regmetrics.Metrics
	publisher events.Publisher
	tx        StoreTx
	issuer    TicketIssuer
}

// Option configures a RegistrationService.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(cfg *serviceConfig) { cfg.publisher = p }
}

func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

func WithTicketIssuer(issuer TicketIssuer) Option {
	return func(cfg *serviceConfig) { cfg.issuer = issuer }
}

// RegistrationService orchestrates the registration lifecycle. The payment
// deadline on a win is supplied by the draw, not configured here.
type RegistrationService struct {
	store   RegistrationStore
	catalog Catalog
	emitter *changeEmitter
	metrics *regmetrics.Metrics
	tx      StoreTx
	issuer  TicketIssuer
	tracer  trace.Tracer
}

func NewRegistrationService(store RegistrationStore, catalog Catalog, opts ...Option) *RegistrationService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	tx := cfg.tx
	if tx == nil {
		tx = nopTx{}
	}
	return &RegistrationService{
		store:   store,
		catalog: catalog,
		emitter: newChangeEmitter(cfg.logger, cfg.publisher),
		metrics: cfg.metrics,
		tx:      tx,
		issuer:  cfg.issuer,
		tracer:  otel.Tracer("stagepass/registration"),
	}
}

type nopTx struct{}

func (nopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// changeEmitter logs every status change and forwards it to the outbox
// publisher when one is wired. A nil publisher (unit tests, dev mode without
// Postgres) degrades to log-only.
type changeEmitter struct {
	logger    *slog.Logger
	publisher events.Publisher
}

func newChangeEmitter(logger *slog.Logger, publisher events.Publisher) *changeEmitter {
	return &changeEmitter{logger: logger, publisher: publisher}
}

func (e *changeEmitter) emit(ctx context.Context, event events.ChangeEvent) error {
	e.logger.InfoContext(ctx, "registration change",
		"type", event.Type,
		"registration_id", event.RegistrationID.String(),
		"event_id", event.EventID.String(),
		"from", string(event.From),
		"to", string(event.To),
	)
	if e.publisher == nil {
		return nil
	}
	return e.publisher.Emit(ctx, event)
}
