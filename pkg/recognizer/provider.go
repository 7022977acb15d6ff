// Package recognizer defines the Provider interface for speech recognition
// backends.
//
// A recognizer wraps a continuous speech-to-text capability (a browser-style
// recognition engine, a streaming STT bridge, or a test double) and exposes a
// uniform session interface. The central abstraction is Session: once
// started, a session emits ResultSet values — the complete current slot set
// for the active utterance window — plus error notifications and an
// end-of-session signal.
//
// The controller depends on this interface rather than probing the hosting
// environment for a recognition capability at runtime; a host that has no
// recognizer simply constructs the controller without one and Start fails
// with ErrUnavailable.
//
// Implementations must be safe for concurrent use.
package recognizer

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Provider.Start when the recognition
// capability is absent in the hosting environment (no backend configured,
// unsupported platform). It is surfaced once per Start attempt; callers
// must not retry.
var ErrUnavailable = errors.New("recognizer: capability unavailable")

// Config describes the recognition parameters for a new session.
type Config struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the backend use its default.
	Language string

	// Interim requests low-latency non-final hypotheses in addition to
	// finals. When false, only committed slots are delivered.
	Interim bool
}

// Session represents a live recognition session. It is an interface so that
// test code can feed scripted result sets without a live backend.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type Session interface {
	// Results returns a read-only channel delivering the complete current
	// hypothesis slot set on every recognizer callback. The channel is
	// closed when the session ends.
	Results() <-chan ResultSet

	// Errors returns a read-only channel delivering error notifications.
	// The channel is closed when the session ends.
	Errors() <-chan Error

	// Done returns a channel that is closed when the backend reports
	// end-of-session, whether or not Close was called.
	Done() <-chan struct{}

	// Close terminates the session and releases its resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech recognition backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Start opens a new recognition session. Returns ErrUnavailable when
	// the capability is absent, or another error when the session cannot
	// be established. The caller owns the Session and must call Close.
	Start(ctx context.Context, cfg Config) (Session, error)
}
