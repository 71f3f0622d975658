// Package service runs the ticket lottery. One draw per event: the
// registration window closes, winners are picked uniformly at random per
// ticket type within seat capacity, and everyone else loses. The draw holds
// a distributed mutex so concurrent triggers cannot run it twice.
package service

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	drawmetrics "stagepass/internal/draw/metrics"
	eventmodels "stagepass/internal/event/models"
	regmodels "stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/requestcontext"
)

const lockKeyPrefix = "stagepass:draw:"

// RegistrationPool is the slice of the registration service the draw needs.
type RegistrationPool interface {
	ListByEventAndStatus(ctx context.Context, eventID id.EventID, status regmodels.Status) ([]*regmodels.Registration, error)
	MarkWon(ctx context.Context, regID id.RegistrationID, paymentDeadline time.Time) (*regmodels.Registration, error)
	MarkLost(ctx context.Context, regID id.RegistrationID) (*regmodels.Registration, error)
}

// EventCatalog records draw completion, closing the registration window.
type EventCatalog interface {
	CompleteDraw(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
}

type serviceConfig struct {
	logger       *slog.Logger
	locker       Locker
	metrics      *drawmetrics.Metrics
	rng          *rand.Rand
	paymentGrace time.Duration
	lockTTL      time.Duration
}

// Option configures a DrawService.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithLocker(locker Locker) Option {
	return func(cfg *serviceConfig) { cfg.locker = locker }
}

func WithMetrics(m *drawmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithRand fixes the random source. Tests use it for reproducible draws.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *serviceConfig) { cfg.rng = rng }
}

func WithPaymentGrace(d time.Duration) Option {
	return func(cfg *serviceConfig) { cfg.paymentGrace = d }
}

func WithLockTTL(d time.Duration) Option {
	return func(cfg *serviceConfig) { cfg.lockTTL = d }
}

// DrawService executes lottery draws.
type DrawService struct {
	regs         RegistrationPool
	catalog      EventCatalog
	locker       Locker
	logger       *slog.Logger
	metrics      *drawmetrics.Metrics
	rng          *rand.Rand
	paymentGrace time.Duration
	lockTTL      time.Duration
	tracer       trace.Tracer
}

func NewDrawService(regs RegistrationPool, catalog EventCatalog, opts ...Option) *DrawService {
	cfg := &serviceConfig{
		paymentGrace: 72 * time.Hour,
		lockTTL:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.locker == nil {
		cfg.locker = NewLocalLocker()
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DrawService{
		regs:         regs,
		catalog:      catalog,
		locker:       cfg.locker,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		rng:          cfg.rng,
		paymentGrace: cfg.paymentGrace,
		lockTTL:      cfg.lockTTL,
		tracer:       otel.Tracer("stagepass/draw"),
	}
}

// Result summarizes one executed draw. DrawID identifies the run in logs and
// responses; the lottery itself keys everything by event.
type Result struct {
	DrawID          id.DrawID  `json:"draw_id"`
	EventID         id.EventID `json:"event_id"`
	Entries         int        `json:"entries"`
	Winners         int        `json:"winners"`
	Losers          int        `json:"losers"`
	PaymentDeadline time.Time  `json:"payment_deadline"`
	DrawnAt         time.Time  `json:"drawn_at"`
}

// ExecuteDraw runs the lottery for one event.
func (s *DrawService) ExecuteDraw(ctx context.Context, eventID id.EventID) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "draw.execute",
		trace.WithAttributes(attribute.String("event_id", eventID.String())))
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)
	drawID := id.NewDrawID()

	release, acquired, err := s.locker.Acquire(ctx, lockKeyPrefix+eventID.String(), s.lockTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "draw lock unavailable")
	}
	if !acquired {
		return nil, dErrors.New(dErrors.CodeConflict, "a draw for this event is already running")
	}
	defer release(ctx)

	// Close the window before reading the pool. A create that lands after
	// this point is rejected, so no entry can slip in between listing and
	// drawing and be stranded in registered. Rerunning fails here with
	// conflict.
	event, err := s.catalog.CompleteDraw(ctx, eventID)
	if err != nil {
		return nil, err
	}

	entries, err := s.regs.ListByEventAndStatus(ctx, eventID, regmodels.StatusRegistered)
	if err != nil {
		return nil, err
	}

	deadline := now.Add(s.paymentGrace)
	winners, losers := s.selectWinners(event, entries)

	var wonCount, lostCount int
	for _, reg := range winners {
		if _, err := s.regs.MarkWon(ctx, reg.ID, deadline); err != nil {
			// The entry moved (likely cancelled) between listing and locking.
			// It is no longer in the pool; skip it.
			s.logger.WarnContext(ctx, "skipping entry during draw",
				"registration_id", reg.ID.String(),
				"error", err,
			)
			continue
		}
		wonCount++
	}
	for _, reg := range losers {
		if _, err := s.regs.MarkLost(ctx, reg.ID); err != nil {
			s.logger.WarnContext(ctx, "skipping entry during draw",
				"registration_id", reg.ID.String(),
				"error", err,
			)
			continue
		}
		lostCount++
	}

	s.logger.InfoContext(ctx, "draw executed",
		"draw_id", drawID.String(),
		"event_id", eventID.String(),
		"entries", len(entries),
		"winners", wonCount,
		"losers", lostCount,
	)
	if s.metrics != nil {
		s.metrics.ObserveDraw(wonCount, lostCount, time.Since(start).Seconds())
	}

	return &Result{
		DrawID:          drawID,
		EventID:         eventID,
		Entries:         len(entries),
		Winners:         wonCount,
		Losers:          lostCount,
		PaymentDeadline: deadline,
		DrawnAt:         now,
	}, nil
}

// selectWinners partitions the registered entries per ticket type, shuffles
// each pool, and accepts entries while seat capacity remains. An entry
// consumes Quantity seats; one that does not fit is passed over, but smaller
// entries behind it may still fit.
func (s *DrawService) selectWinners(event *eventmodels.Event, entries []*regmodels.Registration) (winners, losers []*regmodels.Registration) {
	capacities := make(map[id.TicketTypeID]int, len(event.TicketTypes))
	for _, tt := range event.TicketTypes {
		capacities[tt.ID] = tt.Capacity
	}

	pools := make(map[id.TicketTypeID][]*regmodels.Registration)
	for _, reg := range entries {
		if _, known := capacities[reg.TicketTypeID]; !known {
			losers = append(losers, reg)
			continue
		}
		pools[reg.TicketTypeID] = append(pools[reg.TicketTypeID], reg)
	}

	// Deterministic pool order so a seeded draw is reproducible.
	for _, tt := range event.TicketTypes {
		pool := pools[tt.ID]
		s.rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})

		remaining := capacities[tt.ID]
		for _, reg := range pool {
			if reg.Quantity <= remaining {
				winners = append(winners, reg)
				remaining -= reg.Quantity
			} else {
				losers = append(losers, reg)
			}
		}
	}
	return winners, losers
}
