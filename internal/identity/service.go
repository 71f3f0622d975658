package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	identitymetrics "stagepass/internal/identity/metrics"
	ticketmodels "stagepass/internal/ticket/models"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// TicketResolver looks up the ticket a scanned identity is checked against.
type TicketResolver interface {
	FindByEntryToken(ctx context.Context, token string) (*ticketmodels.Ticket, error)
}

// Result is the outcome of one verification. Mismatches holds one
// human-readable line per compared field that differed; it is empty exactly
// when Match is true.
type Result struct {
	Match      bool      `json:"match"`
	Mismatches []string  `json:"mismatches,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

// comparedClaim binds a verifier claim name to the ticket field it must equal.
type comparedClaim struct {
	ename string
	value func(*ticketmodels.Ticket) string
}

// comparedClaims lists the fields checked at the gate. The holder snapshot
// carries only these; claims the verifier returns beyond them are ignored.
var comparedClaims = []comparedClaim{
	{"id_number", func(t *ticketmodels.Ticket) string { return t.HolderIDNumber }},
	{"name", func(t *ticketmodels.Ticket) string { return t.HolderName }},
}

// VerificationService compares scanned identity claims against ticket holder
// snapshots.
type VerificationService struct {
	claims  ClaimsFetcher
	tickets TicketResolver
	logger  *slog.Logger
	metrics *identitymetrics.Metrics
}

func NewVerificationService(claims ClaimsFetcher, tickets TicketResolver, logger *slog.Logger, metrics *identitymetrics.Metrics) *VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		claims:  claims,
		tickets: tickets,
		logger:  logger,
		metrics: metrics,
	}
}

// VerifyHolder fetches the claims for a completed verification transaction
// and compares them against the holder snapshot on the ticket behind the
// entry token. Every compared field must be present and equal for a match.
func (s *VerificationService) VerifyHolder(ctx context.Context, entryToken, transactionID string) (*Result, error) {
	ticket, err := s.tickets.FindByEntryToken(ctx, entryToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown entry token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve entry token")
	}

	claims, err := s.claims.FetchResult(ctx, transactionID)
	if err != nil {
		s.count("error")
		return nil, err
	}

	result := &Result{
		Match:      true,
		VerifiedAt: requestcontext.Now(ctx),
	}
	for _, compared := range comparedClaims {
		expected := compared.value(ticket)
		scanned, present := claims[compared.ename]
		switch {
		case !present:
			result.Mismatches = append(result.Mismatches,
				fmt.Sprintf("%s: missing from the scanned identity", compared.ename))
		case !claimEqual(expected, scanned):
			result.Mismatches = append(result.Mismatches,
				fmt.Sprintf("%s: ticket holds %q but the scanned identity shows %q",
					compared.ename, expected, scanned))
		}
	}
	result.Match = len(result.Mismatches) == 0

	outcome := "match"
	if !result.Match {
		outcome = "mismatch"
	}
	s.count(outcome)
	s.logger.InfoContext(ctx, "identity verification completed",
		"ticket_id", ticket.ID.String(),
		"transaction_id", transactionID,
		"match", result.Match,
	)
	return result, nil
}

// claimEqual compares a ticket field with a scanned claim, tolerating
// incidental whitespace differences from the verifier.
func claimEqual(expected, scanned string) bool {
	return strings.TrimSpace(expected) == strings.TrimSpace(scanned)
}

func (s *VerificationService) count(result string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(result)
	}
}
