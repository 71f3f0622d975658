// Package circuit implements a count-based circuit breaker for outbound
// dependencies. Callers record outcomes; the breaker answers whether the
// primary path should be skipped in favor of a fallback. An open breaker
// lets probes through again once the cooldown elapses, so a recovered
// dependency gets re-admitted without operator intervention.
package circuit

import (
	"sync"
	"time"
)

// State of the breaker.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// StateChange reports transitions caused by a recorded outcome so callers
// can log or count them exactly once.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker is a concurrency-safe two-state breaker. Consecutive failures open
// it; consecutive successes (probes) close it again. A success in either
// state resets the failure streak and vice versa. While open, IsOpen answers
// true only until the cooldown elapses; after that callers should attempt
// the primary again and record the outcome. A failed probe re-arms the
// cooldown.
type Breaker struct {
	mu               sync.Mutex
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	state            State
	failures         int
	successes        int
	openedUntil      time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open circuit sheds calls before allowing a
// probe through.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source. Tests use it to step through the
// cooldown without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a closed Breaker with a failure threshold of 5, a success
// threshold of 1, and a 30 second cooldown unless overridden.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name, used in logs and metrics labels.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether calls should currently take the fallback path.
// An open circuit whose cooldown has elapsed answers false: the caller is
// expected to probe the primary and record the outcome.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && b.now().Before(b.openedUntil)
}

// RecordFailure notes a failed call. It returns whether the fallback should
// be used for subsequent calls, plus any state transition this failure caused.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		// A failed probe re-arms the cooldown.
		b.openedUntil = b.now().Add(b.cooldown)
		return true, StateChange{}
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.failures = 0
		b.openedUntil = b.now().Add(b.cooldown)
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess notes a successful call. It returns whether the primary path
// is (still or again) usable, plus any state transition this success caused.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, StateChange{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}

// Reset forces the breaker closed and clears all streaks.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}
