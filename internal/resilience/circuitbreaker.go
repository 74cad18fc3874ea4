// Package resilience guards calls to flaky backends with a circuit breaker.
//
// [Breaker] is a three-state breaker (closed → open → half-open). While open
// it fails fast with [ErrCircuitOpen] instead of letting every game round
// wait on a database that is down.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a few probe calls through to decide whether the
	// backend recovered.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes a [Breaker]. Zero fields take the defaults noted per field.
type Config struct {
	// Name labels log lines.
	Name string

	// MaxFailures opens the breaker after this many consecutive failures.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes successful probes close the breaker again. Default: 2.
	HalfOpenProbes int

	// IsFailure decides which errors count against the backend. Default:
	// every error except context cancellation and deadline expiry.
	IsFailure func(error) bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probes       int
	isFailure    func(error) bool
	now          func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// New returns a closed [Breaker].
func New(cfg Config) *Breaker {
	b := &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		probes:       cfg.HalfOpenProbes,
		isFailure:    cfg.IsFailure,
		now:          cfg.Now,
	}
	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = 30 * time.Second
	}
	if b.probes <= 0 {
		b.probes = 2
	}
	if b.isFailure == nil {
		b.isFailure = defaultIsFailure
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn unless the breaker is open. The error of fn is returned as is.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.settle(probe, err != nil && b.isFailure(err))
	return err
}

// admit reports whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.inFlight+b.successes >= b.probes {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) settle(probe, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inFlight--
		if b.state != StateHalfOpen {
			return
		}
		if failed {
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.probes {
			b.transition(StateClosed)
		}
		return
	}

	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.maxFailures {
		b.transition(StateOpen)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.successes = 0
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		slog.Warn("circuit breaker opened", "name", b.name, "from", from, "consecutive_failures", b.failures)
	case StateHalfOpen:
		slog.Info("circuit breaker half-open", "name", b.name)
	case StateClosed:
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.name, "from", from)
	}
}

// State returns the current state. An open breaker whose timeout elapsed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}
