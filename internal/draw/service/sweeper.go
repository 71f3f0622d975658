package service

import (
	"context"
	"log/slog"
	"time"

	drawmetrics "stagepass/internal/draw/metrics"
	regmodels "stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
)

const sweepBatchSize = 100

// ExpiredRegistrations is the slice of the registration service the sweeper
// needs.
type ExpiredRegistrations interface {
	ListExpiredWon(ctx context.Context, now time.Time, limit int) ([]*regmodels.Registration, error)
	CancelExpired(ctx context.Context, regID id.RegistrationID) (*regmodels.Registration, error)
}

// Sweeper periodically cancels won registrations whose payment deadline has
// passed, returning their seats to circulation.
type Sweeper struct {
	regs     ExpiredRegistrations
	interval time.Duration
	logger   *slog.Logger
	metrics  *drawmetrics.Metrics
}

func NewSweeper(regs ExpiredRegistrations, interval time.Duration, logger *slog.Logger, metrics *drawmetrics.Metrics) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{regs: regs, interval: interval, logger: logger, metrics: metrics}
}

// Run sweeps on a ticker until the context is cancelled. It always returns
// nil on shutdown so an errgroup treats cancellation as a clean exit.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so tests and the draw trigger can force it.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.IncrementSweeperRun()
	}

	expired, err := s.regs.ListExpiredWon(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "deadline sweep failed", "error", err)
		return
	}

	for _, reg := range expired {
		if _, err := s.regs.CancelExpired(ctx, reg.ID); err != nil {
			// Paid or withdrawn since listing; nothing to do.
			s.logger.WarnContext(ctx, "expired entry not cancelled",
				"registration_id", reg.ID.String(),
				"error", err,
			)
			continue
		}
		s.logger.InfoContext(ctx, "expired registration cancelled",
			"registration_id", reg.ID.String(),
			"event_id", reg.EventID.String(),
		)
	}
}
