// Package mock provides test doubles for the recognizer package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// Config. Use Session to feed scripted ResultSet and Error values into the
// consumer under test.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Start(ctx, cfg)
//	sess.ResultsCh <- recognizer.ResultSet{...}
package mock

import (
	"context"
	"sync"

	"github.com/medvoice/scribectl/pkg/recognizer"
)

// StartCall records a single invocation of Provider.Start.
type StartCall struct {
	// Ctx is the context passed to Start.
	Ctx context.Context
	// Cfg is the Config passed to Start.
	Cfg recognizer.Config
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by Start. If nil, Start returns a fresh
	// NewSession().
	Session recognizer.Session

	// Sessions, if non-empty, is consumed one per Start call before
	// falling back to Session. Useful for restart tests where each
	// attempt must get its own live session.
	Sessions []recognizer.Session

	// StartErr, if non-nil, is returned as the error from Start.
	StartErr error

	// StartCalls records every call to Start.
	StartCalls []StartCall
}

// Start records the call and returns the configured session or error.
func (p *Provider) Start(ctx context.Context, cfg recognizer.Config) (recognizer.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, StartCall{Ctx: ctx, Cfg: cfg})
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if len(p.Sessions) > 0 {
		s := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return s, nil
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a copy of the recorded Start calls. Thread-safe.
func (p *Provider) Calls() []StartCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StartCall, len(p.StartCalls))
	copy(out, p.StartCalls)
	return out
}

var _ recognizer.Provider = (*Provider)(nil)

// Session is a scripted recognizer.Session. Tests write directly to
// ResultsCh and ErrorsCh and call End to signal end-of-session.
type Session struct {
	ResultsCh chan recognizer.ResultSet
	ErrorsCh  chan recognizer.Error

	done     chan struct{}
	endOnce  sync.Once
	closeMu  sync.Mutex
	closed   bool
	CloseErr error
}

// NewSession returns a Session with buffered channels ready for scripting.
func NewSession() *Session {
	return &Session{
		ResultsCh: make(chan recognizer.ResultSet, 16),
		ErrorsCh:  make(chan recognizer.Error, 16),
		done:      make(chan struct{}),
	}
}

// Results implements recognizer.Session.
func (s *Session) Results() <-chan recognizer.ResultSet { return s.ResultsCh }

// Errors implements recognizer.Session.
func (s *Session) Errors() <-chan recognizer.Error { return s.ErrorsCh }

// Done implements recognizer.Session.
func (s *Session) Done() <-chan struct{} { return s.done }

// End closes the result and error channels and signals Done, mimicking a
// backend-initiated end-of-session. Safe to call more than once.
func (s *Session) End() {
	s.endOnce.Do(func() {
		close(s.ResultsCh)
		close(s.ErrorsCh)
		close(s.done)
	})
}

// Close implements recognizer.Session. It ends the session and records
// that Close was called.
func (s *Session) Close() error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()
	s.End()
	return s.CloseErr
}

// Closed reports whether Close has been called. Thread-safe.
func (s *Session) Closed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

var _ recognizer.Session = (*Session)(nil)
