// Package fallback provides a recognizer.Provider that fails over across
// multiple backends. Each backend gets its own circuit breaker, so a bridge
// that keeps refusing connections is skipped instead of delaying every
// session start and restart.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medvoice/scribectl/internal/resilience"
	"github.com/medvoice/scribectl/pkg/recognizer"
)

// ErrAllFailed is returned when every backend fails or has an open breaker.
var ErrAllFailed = errors.New("fallback: all recognizer backends failed")

type entry struct {
	name     string
	provider recognizer.Provider
	breaker  *resilience.Breaker
}

// Provider tries its backends in registration order on every Start call.
// Safe for concurrent use after construction.
type Provider struct {
	entries []entry
	cfg     resilience.Config
}

// Option is a functional option for configuring a fallback [Provider].
type Option func(*Provider)

// WithBreakerConfig sets the circuit breaker tuning applied to every
// backend. The Name field is overridden per backend.
func WithBreakerConfig(cfg resilience.Config) Option {
	return func(p *Provider) {
		p.cfg = cfg
	}
}

// New creates a fallback Provider with primary as the preferred backend.
func New(primaryName string, primary recognizer.Provider, opts ...Option) *Provider {
	p := &Provider{}
	for _, o := range opts {
		o(p)
	}
	p.add(primaryName, primary)
	return p
}

// Add registers an additional backend, tried after all earlier ones.
func (p *Provider) Add(name string, provider recognizer.Provider) {
	p.add(name, provider)
}

func (p *Provider) add(name string, provider recognizer.Provider) {
	cfg := p.cfg
	cfg.Name = name
	p.entries = append(p.entries, entry{
		name:     name,
		provider: provider,
		breaker:  resilience.NewBreaker(cfg),
	})
}

// Start implements recognizer.Provider. The first backend whose breaker is
// closed and whose Start succeeds wins; open breakers are skipped.
func (p *Provider) Start(ctx context.Context, cfg recognizer.Config) (recognizer.Session, error) {
	var lastErr error
	for i := range p.entries {
		e := &p.entries[i]

		var sess recognizer.Session
		err := e.breaker.Do(func() error {
			var startErr error
			sess, startErr = e.provider.Start(ctx, cfg)
			return startErr
		})
		if err == nil {
			return sess, nil
		}
		lastErr = err

		if errors.Is(err, resilience.ErrOpen) {
			slog.Debug("fallback: backend skipped", "backend", e.name)
		} else {
			slog.Warn("fallback: backend failed, trying next", "backend", e.name, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

var _ recognizer.Provider = (*Provider)(nil)
