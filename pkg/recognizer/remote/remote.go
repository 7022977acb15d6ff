// Package remote provides a recognizer.Provider backed by a streaming STT
// bridge speaking JSON over WebSocket. The bridge sits in front of whatever
// recognition engine the deployment uses and relays complete hypothesis slot
// sets, error notifications, and an end-of-session marker.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/medvoice/scribectl/pkg/recognizer"
)

const defaultLanguage = "en-US"

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language tag used when the session
// Config does not specify one.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithToken sets a bearer token sent on the dial request.
func WithToken(token string) Option {
	return func(p *Provider) {
		p.token = token
	}
}

// Provider implements recognizer.Provider against a WebSocket STT bridge.
type Provider struct {
	endpoint string
	language string
	token    string
}

// New creates a Provider for the bridge at endpoint (a ws:// or wss:// URL).
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("remote: %w", recognizer.ErrUnavailable)
	}
	p := &Provider{
		endpoint: endpoint,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Start implements recognizer.Provider. It dials the bridge and begins
// relaying result sets until the bridge closes the stream or the caller
// calls Close.
func (p *Provider) Start(ctx context.Context, cfg recognizer.Config) (recognizer.Session, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("remote: build URL: %w", err)
	}

	opts := &websocket.DialOptions{}
	if p.token != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + p.token},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("remote: dial: %w", err)
	}

	sess := &session{
		conn:    conn,
		results: make(chan recognizer.ResultSet, 64),
		errs:    make(chan recognizer.Error, 16),
		done:    make(chan struct{}),
	}

	sess.wg.Add(1)
	go sess.readLoop(ctx)

	return sess, nil
}

// buildURL constructs the bridge endpoint URL for the given config.
func (p *Provider) buildURL(cfg recognizer.Config) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("language", lang)
	q.Set("interim", strconv.FormatBool(cfg.Interim))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// bridgeFrame is the JSON structure the bridge sends for every event.
type bridgeFrame struct {
	Type       string `json:"type"` // "results", "error", "end"
	Hypotheses []struct {
		Transcript string  `json:"transcript"`
		IsFinal    bool    `json:"is_final"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// session is a live bridge session. It implements recognizer.Session.
type session struct {
	conn    *websocket.Conn
	results chan recognizer.ResultSet
	errs    chan recognizer.Error

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Results returns the channel of hypothesis slot sets.
func (s *session) Results() <-chan recognizer.ResultSet { return s.results }

// Errors returns the channel of error notifications.
func (s *session) Errors() <-chan recognizer.Error { return s.errs }

// Done returns the end-of-session channel.
func (s *session) Done() <-chan struct{} { return s.done }

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// readLoop receives JSON frames from the bridge and dispatches them to the
// results and errors channels until the stream ends.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)
	defer close(s.errs)
	defer s.signalDone()

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Abnormal closure while the session is still open is a
			// network-level failure the consumer may want to recover from.
			if !s.isDone() && !errors.Is(err, context.Canceled) {
				select {
				case s.errs <- recognizer.Error{
					Code:    recognizer.CodeNetwork,
					Message: err.Error(),
				}:
				default:
				}
			}
			return
		}

		frame, ok := parseFrame(msg)
		if !ok {
			continue
		}

		switch frame.Type {
		case "results":
			rs := recognizer.ResultSet{
				Hypotheses: make([]recognizer.Hypothesis, 0, len(frame.Hypotheses)),
			}
			for _, h := range frame.Hypotheses {
				rs.Hypotheses = append(rs.Hypotheses, recognizer.Hypothesis{
					Text:       h.Transcript,
					IsFinal:    h.IsFinal,
					Confidence: h.Confidence,
				})
			}
			select {
			case s.results <- rs:
			case <-s.done:
				return
			}
		case "error":
			select {
			case s.errs <- recognizer.Error{
				Code:    recognizer.ErrorCode(frame.Code),
				Message: frame.Message,
			}:
			case <-s.done:
				return
			}
		case "end":
			return
		}
	}
}

func (s *session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// signalDone closes done without tearing down the connection, so a
// bridge-initiated "end" frame is observable by the consumer before Close.
func (s *session) signalDone() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close(websocket.StatusNormalClosure, "stream ended")
	})
}

// parseFrame parses a raw bridge message. Returns (frame, true) on success,
// or (zero, false) if the message should be ignored.
func parseFrame(data []byte) (bridgeFrame, bool) {
	var f bridgeFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return bridgeFrame{}, false
	}
	if f.Type == "" {
		return bridgeFrame{}, false
	}
	return f, true
}

var _ recognizer.Provider = (*Provider)(nil)
