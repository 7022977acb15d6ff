// Package controller wires the recognizer, result aggregator, command
// classifier, field extractor, and session store into one voice-control
// surface for the host UI.
//
// A Controller owns at most one live recognition session. A single event
// loop goroutine consumes the session's result, error, and end channels, so
// the aggregator, classifier, and detector are only ever mutated from that
// loop — no cross-instance sharing, no locking beyond the controller's own
// flag state.
//
// All host-facing notifications go through [Callbacks]; nothing is ever
// re-thrown past this boundary except as an OnError report.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/medvoice/scribectl/internal/command"
	"github.com/medvoice/scribectl/internal/extract"
	"github.com/medvoice/scribectl/internal/observe"
	"github.com/medvoice/scribectl/internal/session"
	"github.com/medvoice/scribectl/internal/transcript"
	"github.com/medvoice/scribectl/pkg/recognizer"
)

// Callbacks is the outbound notification surface. Nil members are skipped.
// Callbacks are invoked from the controller's event loop goroutine (and
// from the caller's goroutine during Stop); they must not block.
type Callbacks struct {
	// OnCommand fires once per classified command.
	OnCommand func(action command.Action, rawText string)

	// OnTranscript fires for every throttled interim and for every final
	// dictation chunk not classified as a command.
	OnTranscript func(text string, isFinal bool)

	// OnListenStateChange fires on transitions of the listening flag.
	OnListenStateChange func(isListening bool)

	// OnError fires with a code and message on any recognizer error.
	OnError func(code, message string)

	// OnDetection fires whenever both the MRN and the template have been
	// detected. It may fire repeatedly once both are set; consumers must
	// be idempotent.
	OnDetection func(det extract.Detection)
}

// TemplateSource supplies the current list of template display names, in
// priority order. It may be nil or return an error; extraction then
// degrades to "no template match" rather than failing.
type TemplateSource func(ctx context.Context) ([]string, error)

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithLanguage sets the initial recognition language tag.
func WithLanguage(tag string) Option {
	return func(c *Controller) {
		c.language = tag
	}
}

// WithTemplates sets the initial template list.
func WithTemplates(templates []string) Option {
	return func(c *Controller) {
		c.templates = append([]string(nil), templates...)
	}
}

// WithTemplateSource sets a pull-style template supplier consulted on
// every finalized utterance.
func WithTemplateSource(src TemplateSource) Option {
	return func(c *Controller) {
		c.source = src
	}
}

// WithInterimThrottle sets the minimum interval between interim emissions.
func WithInterimThrottle(d time.Duration) Option {
	return func(c *Controller) {
		c.aggOpts = append(c.aggOpts, transcript.WithInterimThrottle(d))
	}
}

// WithClassifier replaces the default classifier, e.g. to install override
// patterns.
func WithClassifier(cl *command.Classifier) Option {
	return func(c *Controller) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithDetector replaces the default detector, e.g. to tune the MRN digit
// prefix or fuzzy thresholds.
func WithDetector(d *extract.Detector) Option {
	return func(c *Controller) {
		if d != nil {
			c.detector = d
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to the process-wide one.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Controller is the voice-command and dictation controller.
type Controller struct {
	provider recognizer.Provider
	store    *session.Store
	cb       Callbacks
	metrics  *observe.Metrics

	classifier *command.Classifier
	detector   *extract.Detector
	aggOpts    []transcript.Option

	mu        sync.Mutex
	agg       *transcript.Aggregator
	sess      recognizer.Session
	listening bool
	destroyed bool
	language  string
	templates []string
	source    TemplateSource
	loopDone  chan struct{}
}

// New constructs a Controller. provider may be nil, in which case Start
// reports the unavailable-capability error. store may be nil to disable
// persistence. cb members may be nil.
func New(provider recognizer.Provider, store *session.Store, cb Callbacks, opts ...Option) *Controller {
	c := &Controller{
		provider:   provider,
		store:      store,
		cb:         cb,
		metrics:    observe.DefaultMetrics(),
		classifier: command.New(),
		detector:   extract.NewDetector(extract.NewMRNExtractor(), extract.NewTemplateMatcher()),
	}
	for _, o := range opts {
		o(c)
	}
	c.agg = transcript.New(c.aggOpts...)
	return c
}

// Start begins listening. It is a no-op when already listening. The
// returned error is also reported through OnError, so hosts driving the UI
// purely from callbacks may ignore it.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.New("controller: destroyed")
	}
	if c.listening {
		c.mu.Unlock()
		return nil
	}
	provider := c.provider
	cfg := recognizer.Config{Language: c.language, Interim: true}
	c.mu.Unlock()

	if provider == nil {
		c.reportError(ctx, "unavailable", "speech recognition capability is not available")
		return recognizer.ErrUnavailable
	}

	sess, err := provider.Start(ctx, cfg)
	if err != nil {
		if errors.Is(err, recognizer.ErrUnavailable) {
			c.reportError(ctx, "unavailable", err.Error())
		} else {
			c.reportError(ctx, "start-failed", err.Error())
		}
		return err
	}

	c.mu.Lock()
	c.sess = sess
	c.listening = true
	c.loopDone = make(chan struct{})
	loopDone := c.loopDone
	c.mu.Unlock()

	c.metrics.AddActiveSessions(ctx, 1)
	c.notifyListening(true)

	go c.run(ctx, sess, loopDone)
	return nil
}

// Stop ends the listening session. A note in progress is flushed first so
// it is never silently lost on an external stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return
	}
	c.listening = false
	sess := c.sess
	c.sess = nil
	loopDone := c.loopDone
	c.mu.Unlock()

	c.flushNote(context.Background())

	if sess != nil {
		if err := sess.Close(); err != nil {
			slog.Warn("controller: session close failed", "error", err)
		}
	}
	if loopDone != nil {
		<-loopDone
	}

	c.metrics.AddActiveSessions(context.Background(), -1)
	c.notifyListening(false)
}

// Destroy stops listening and releases the controller. Subsequent Start
// calls fail.
func (c *Controller) Destroy() {
	c.Stop()
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

// SetLanguage sets the recognition language for subsequent sessions.
func (c *Controller) SetLanguage(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = tag
}

// SetTemplates replaces the template list at runtime.
func (c *Controller) SetTemplates(templates []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = append([]string(nil), templates...)
}

// ResetDetection clears the detected fields, the accumulated transcript,
// and any note in progress.
func (c *Controller) ResetDetection() {
	c.detector.Reset()
	c.classifier.Reset()
	c.agg.Reset()
}

// Detection returns the current detection snapshot.
func (c *Controller) Detection() extract.Detection {
	return c.detector.Snapshot()
}

// Transcript returns the accumulated finalized transcript text.
func (c *Controller) Transcript() string {
	return c.agg.FullText()
}

// Listening reports whether a recognition session is live.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// run is the event loop for one recognition session. It restarts the
// session in place after recoverable errors while the listening flag is
// still up; everything else ends the loop.
func (c *Controller) run(ctx context.Context, sess recognizer.Session, loopDone chan struct{}) {
	defer close(loopDone)

	results := sess.Results()
	errs := sess.Errors()
	done := sess.Done()

	for {
		select {
		case rs, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			c.ingest(ctx, rs)

		case recErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.metrics.RecordRecognizerError(ctx, string(recErr.Code))
			c.reportError(ctx, string(recErr.Code), recErr.Message)

			if recErr.Code.Recoverable() && c.Listening() {
				next, ok := c.restart(ctx, sess)
				if !ok {
					return
				}
				sess = next
				results, errs, done = sess.Results(), sess.Errors(), sess.Done()
			}

		case <-done:
			if !c.Listening() {
				return
			}
			// Backend-initiated end while we still want to listen:
			// restart, same as a recoverable error.
			next, ok := c.restart(ctx, sess)
			if !ok {
				return
			}
			sess = next
			results, errs, done = sess.Results(), sess.Errors(), sess.Done()
		}
	}
}

// restart opens a replacement session, fire-and-forget: a failed restart
// is reported once and drops the listening flag, with no further retry.
func (c *Controller) restart(ctx context.Context, old recognizer.Session) (recognizer.Session, bool) {
	_ = old.Close()

	c.mu.Lock()
	if !c.listening || c.destroyed {
		c.mu.Unlock()
		return nil, false
	}
	provider := c.provider
	cfg := recognizer.Config{Language: c.language, Interim: true}
	c.mu.Unlock()

	next, err := provider.Start(ctx, cfg)
	if err != nil {
		c.reportError(ctx, "restart-failed", err.Error())
		c.mu.Lock()
		c.listening = false
		c.sess = nil
		c.mu.Unlock()
		c.metrics.AddActiveSessions(ctx, -1)
		c.notifyListening(false)
		return nil, false
	}

	c.mu.Lock()
	c.sess = next
	c.mu.Unlock()

	c.metrics.AddRestart(ctx)
	slog.Debug("controller: recognizer restarted")
	return next, true
}

// ingest feeds one result set through the aggregator and routes the
// outcome.
func (c *Controller) ingest(ctx context.Context, rs recognizer.ResultSet) {
	start := time.Now()
	update := c.agg.Ingest(rs)
	c.metrics.RecordIngest(ctx, time.Since(start).Seconds())

	if update.Final != "" {
		c.handleFinal(ctx, update.Final)
		return
	}
	if update.Interim == "" {
		return
	}
	if !update.EmitInterim {
		c.metrics.AddInterimDropped(ctx)
		return
	}
	if c.cb.OnTranscript != nil {
		c.cb.OnTranscript(update.Interim, false)
	}
}

// handleFinal runs one finalized utterance through classification and
// extraction, and persists the session state.
func (c *Controller) handleFinal(ctx context.Context, chunk string) {
	c.metrics.AddFinalUtterance(ctx)
	fullText := c.agg.FullText()

	outcome := c.classifier.Classify(strings.ToLower(chunk))
	switch {
	case outcome.IsCommand():
		c.metrics.RecordCommand(ctx, string(outcome.Action))
		if c.cb.OnCommand != nil {
			c.cb.OnCommand(outcome.Action, chunk)
		}
		if outcome.Action == command.ActionStopNote && outcome.Note != "" && c.cb.OnTranscript != nil {
			c.cb.OnTranscript(outcome.Note, true)
		}
	case outcome.Dictation != "":
		if c.cb.OnTranscript != nil {
			c.cb.OnTranscript(outcome.Dictation, true)
		}
	}

	// Extraction runs on every finalized utterance, independent of command
	// classification.
	det, complete := c.detector.Scan(chunk, c.currentTemplates(ctx), fullText)
	c.persist(ctx, det, fullText)

	if complete {
		c.metrics.AddDetection(ctx)
		if c.cb.OnDetection != nil {
			c.cb.OnDetection(det)
		}
	}
}

// currentTemplates consults the pull source when configured, falling back
// to the cached list on error or absence.
func (c *Controller) currentTemplates(ctx context.Context) []string {
	c.mu.Lock()
	cached := c.templates
	src := c.source
	c.mu.Unlock()

	if src == nil {
		return cached
	}
	templates, err := src(ctx)
	if err != nil {
		slog.Debug("controller: template source failed, using cached list", "error", err)
		return cached
	}
	return templates
}

// persist writes the latest detection state and transcript, best-effort.
func (c *Controller) persist(ctx context.Context, det extract.Detection, fullText string) {
	if c.store == nil {
		return
	}
	if det.MRN != "" {
		c.store.SaveMRN(ctx, det.MRN)
	}
	if det.Template != "" {
		c.store.SaveTemplate(ctx, det.Template)
	}
	c.store.SaveTranscript(ctx, fullText)
	c.store.SaveSession(ctx, session.Partial{
		MRN:        optional(det.MRN),
		Template:   optional(det.Template),
		Transcript: &fullText,
	})
}

// flushNote force-ends a note in progress, surfacing it exactly as the
// spoken end-note command would have.
func (c *Controller) flushNote(ctx context.Context) {
	note, ok := c.classifier.FlushNote()
	if !ok {
		return
	}
	c.metrics.RecordCommand(ctx, string(command.ActionStopNote))
	if c.cb.OnCommand != nil {
		c.cb.OnCommand(command.ActionStopNote, "")
	}
	if note != "" && c.cb.OnTranscript != nil {
		c.cb.OnTranscript(note, true)
	}
}

func (c *Controller) notifyListening(listening bool) {
	if c.cb.OnListenStateChange != nil {
		c.cb.OnListenStateChange(listening)
	}
}

func (c *Controller) reportError(_ context.Context, code, message string) {
	slog.Warn("controller: recognizer error", "code", code, "message", message)
	if c.cb.OnError != nil {
		c.cb.OnError(code, message)
	}
}

// optional returns nil for empty strings so absent fields do not clobber
// previously persisted values in the merged session record.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
