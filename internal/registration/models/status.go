package models

import (
	dErrors "stagepass/pkg/domain-errors"
)

// Status is the lifecycle state of a lottery registration.
type Status string

const (
	// StatusRegistered: entered into the draw, waiting for it to run.
	StatusRegistered Status = "registered"
	// StatusWon: selected by the draw, payment pending until the deadline.
	StatusWon Status = "won"
	// StatusLost: not selected by the draw. Terminal.
	StatusLost Status = "lost"
	// StatusCancelled: withdrawn by the holder or expired unpaid. Terminal.
	StatusCancelled Status = "cancelled"
	// StatusConfirmed: paid; a ticket has been issued.
	StatusConfirmed Status = "confirmed"
	// StatusUsed: ticket presented at the venue. Terminal.
	StatusUsed Status = "used"
)

// transitions is the authoritative forward-only transition table. Anything
// not listed here is an illegal transition; in particular no terminal state
// has outgoing edges, so used can never regress to registered.
var transitions = map[Status][]Status{
	StatusRegistered: {StatusWon, StatusLost, StatusCancelled},
	StatusWon:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusUsed},
	StatusLost:       {},
	StatusCancelled:  {},
	StatusUsed:       {},
}

// ParseStatus validates a status string from a trust boundary.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := transitions[status]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown registration status %q", s)
	}
	return status, nil
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether the registration still occupies the holder's
// single entry slot for the event (registered, won, or confirmed).
func (s Status) IsActive() bool {
	switch s {
	case StatusRegistered, StatusWon, StatusConfirmed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }
