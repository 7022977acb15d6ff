// Package resilience provides the circuit breaker used by the recognizer
// fallback chain.
//
// The breaker is the classic three-state machine: closed forwards calls,
// open rejects them until the reset timeout elapses, half-open lets a small
// probe budget through and closes again only when every probe succeeds.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open.
var ErrOpen = errors.New("resilience: breaker open")

// State is the breaker's operating mode.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a [Breaker]. Zero fields take defaults.
type Config struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default 30s.
	ResetTimeout time.Duration

	// ProbeBudget is the number of half-open probe calls. Default 2.
	ProbeBudget int
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	name    string
	trip    int
	reset   time.Duration
	probes  int
	nowFunc func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeUsed int
	probeOK   int
}

// NewBreaker returns a closed Breaker.
func NewBreaker(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:    cfg.Name,
		trip:    cfg.MaxFailures,
		reset:   cfg.ResetTimeout,
		probes:  cfg.ProbeBudget,
		nowFunc: time.Now,
	}
}

// Do runs fn when the breaker allows it and feeds the result back into the
// state machine. While open it returns [ErrOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if b.nowFunc().Sub(b.openedAt) < b.reset {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.probeUsed = 0
		b.probeOK = 0
		slog.Info("breaker half-open", "name", b.name)
	case HalfOpen:
		if b.probeUsed >= b.probes {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	probing := b.state == HalfOpen
	if probing {
		b.probeUsed++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with the lock held.
func (b *Breaker) onFailure(probing bool) {
	b.openedAt = b.nowFunc()
	if probing {
		// A failed probe re-opens immediately.
		b.state = Open
		b.failures = b.trip
		slog.Warn("breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.state = Open
		slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
	}
}

// onSuccess must be called with the lock held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		b.probeOK++
		if b.probeOK >= b.probes {
			b.state = Closed
			b.failures = 0
			slog.Info("breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the current state. An elapsed reset timeout reads as
// half-open; the actual transition happens on the next Do.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.nowFunc().Sub(b.openedAt) >= b.reset {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probeUsed = 0
	b.probeOK = 0
}
