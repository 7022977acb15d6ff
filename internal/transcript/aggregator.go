// Package transcript turns the recognizer's raw, possibly-overlapping
// hypothesis slot sets into a stable, ordered plain-text transcript.
//
// Recognizers replace earlier interim slots wholesale between callbacks, so
// the [Aggregator] always scans the complete slot set from index 0 — resuming
// from a partial offset is exactly what corrupts sentence order. Finalized
// slots are accumulated in recognition order; only the single latest
// non-final slot is tracked as the current interim, and interim emission is
// throttled so downstream consumers are not flooded.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/medvoice/scribectl/pkg/recognizer"
)

// DefaultInterimThrottle is the minimum interval between two interim
// emissions when no throttle is configured.
const DefaultInterimThrottle = 800 * time.Millisecond

// Update is the outcome of ingesting one recognizer callback.
type Update struct {
	// Final is the finalized chunk produced by this callback: every final
	// slot's text joined by single spaces, original casing preserved.
	// Empty when no slot in the set was final.
	Final string

	// Interim is the latest non-final slot's text. Only meaningful when
	// EmitInterim is true.
	Interim string

	// EmitInterim reports whether the interim should be surfaced. It is
	// false when a final chunk exists (finals take priority for the
	// callback), when the interim was throttled, or when there was no
	// interim at all.
	EmitInterim bool
}

// Aggregator accumulates finalized segments in recognition order and tracks
// the current interim hypothesis.
//
// All methods are safe for concurrent use, though in practice a single
// controller goroutine owns each instance.
type Aggregator struct {
	mu       sync.Mutex
	segments []string
	interim  string

	throttle    time.Duration
	lastInterim time.Time
	now         func() time.Time
}

// Option is a functional option for configuring an [Aggregator].
type Option func(*Aggregator)

// WithInterimThrottle sets the minimum interval between interim emissions.
// Non-positive values keep the default.
func WithInterimThrottle(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.throttle = d
		}
	}
}

// WithClock overrides the time source. Used by tests to drive throttling
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		throttle: DefaultInterimThrottle,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ingest processes the complete current slot set from one recognizer
// callback and returns what should be surfaced downstream.
//
// Every slot is visited in the order supplied, starting from the first.
// Whitespace-only slot text contributes nothing. A finalized chunk, when
// present, is appended to the transcript and suppresses interim emission
// for this callback.
func (a *Aggregator) Ingest(rs recognizer.ResultSet) Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	var finals []string
	interim := ""
	for _, h := range rs.Hypotheses {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		if h.IsFinal {
			finals = append(finals, text)
		} else {
			// A newer interim replaces the previous one; interims are
			// never accumulated.
			interim = text
		}
	}

	if len(finals) > 0 {
		chunk := strings.Join(finals, " ")
		a.segments = append(a.segments, chunk)
		a.interim = ""
		return Update{Final: chunk}
	}

	if interim == "" {
		return Update{}
	}

	a.interim = interim
	ts := a.now()
	if !a.lastInterim.IsZero() && ts.Sub(a.lastInterim) < a.throttle {
		// Dropped silently: latest-wins, no queueing.
		return Update{Interim: interim}
	}
	a.lastInterim = ts
	return Update{Interim: interim, EmitInterim: true}
}

// FullText returns all finalized segments joined by single spaces, in
// recognition order.
func (a *Aggregator) FullText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.segments, " ")
}

// Segments returns a copy of the finalized segments in recognition order.
func (a *Aggregator) Segments() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.segments))
	copy(out, a.segments)
	return out
}

// Interim returns the latest non-final hypothesis text, throttled or not.
func (a *Aggregator) Interim() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interim
}

// Reset discards all accumulated state. Called when the session restarts
// from scratch (detection reset or explicit user action).
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.segments = nil
	a.interim = ""
	a.lastInterim = time.Time{}
}
