package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medvoice/scribectl/internal/command"
	"github.com/medvoice/scribectl/internal/extract"
	"github.com/medvoice/scribectl/internal/observe"
	"github.com/medvoice/scribectl/internal/session"
	"github.com/medvoice/scribectl/pkg/recognizer"
	"github.com/medvoice/scribectl/pkg/recognizer/mock"
	"github.com/medvoice/scribectl/pkg/store/memory"
)

type cmdEvent struct {
	action command.Action
	raw    string
}

type txEvent struct {
	text  string
	final bool
}

type errEvent struct {
	code    string
	message string
}

// recorder collects callback invocations on buffered channels so tests can
// wait for the event loop without polling.
type recorder struct {
	commands    chan cmdEvent
	transcripts chan txEvent
	states      chan bool
	errs        chan errEvent
	detections  chan extract.Detection
}

func newRecorder() *recorder {
	return &recorder{
		commands:    make(chan cmdEvent, 16),
		transcripts: make(chan txEvent, 16),
		states:      make(chan bool, 16),
		errs:        make(chan errEvent, 16),
		detections:  make(chan extract.Detection, 16),
	}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnCommand: func(action command.Action, raw string) {
			r.commands <- cmdEvent{action: action, raw: raw}
		},
		OnTranscript: func(text string, final bool) {
			r.transcripts <- txEvent{text: text, final: final}
		},
		OnListenStateChange: func(listening bool) {
			r.states <- listening
		},
		OnError: func(code, message string) {
			r.errs <- errEvent{code: code, message: message}
		},
		OnDetection: func(det extract.Detection) {
			r.detections <- det
		},
	}
}

func recv[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func finalSet(text string) recognizer.ResultSet {
	return recognizer.ResultSet{Hypotheses: []recognizer.Hypothesis{{Text: text, IsFinal: true}}}
}

func interimSet(text string) recognizer.ResultSet {
	return recognizer.ResultSet{Hypotheses: []recognizer.Hypothesis{{Text: text}}}
}

func TestController_CommandCallback(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if state := recv(t, rec.states, "listen state"); !state {
		t.Fatal("expected listening=true after Start")
	}

	sess.ResultsCh <- finalSet("disconnect now")

	got := recv(t, rec.commands, "command callback")
	if got.action != command.ActionDisconnect {
		t.Errorf("action = %q", got.action)
	}
	if got.raw != "disconnect now" {
		t.Errorf("raw = %q, want the original chunk", got.raw)
	}

	c.Stop()
	if state := recv(t, rec.states, "listen state"); state {
		t.Error("expected listening=false after Stop")
	}
	if c.Listening() {
		t.Error("Listening() still true after Stop")
	}
}

func TestController_InterimTranscript(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- interimSet("the patient is")

	got := recv(t, rec.transcripts, "interim transcript")
	if got.final {
		t.Error("interim surfaced as final")
	}
	if got.text != "the patient is" {
		t.Errorf("text = %q", got.text)
	}
}

func TestController_DictationAndDetection(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	kv := memory.New()
	c := New(&mock.Provider{Session: sess}, session.New(kv), rec.callbacks(),
		WithTemplates([]string{"Discharge Summary"}),
	)
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- finalSet("the patient's MRN is AB123")
	if got := recv(t, rec.transcripts, "dictation transcript"); !got.final {
		t.Error("dictation chunk should surface as final")
	}

	sess.ResultsCh <- finalSet("use the discharge summary")
	recv(t, rec.transcripts, "second dictation transcript")

	det := recv(t, rec.detections, "detection callback")
	if det.MRN != "AB123" || det.Template != "Discharge Summary" {
		t.Fatalf("detection = %+v", det)
	}
	if det.Text == "" {
		t.Error("detection should carry the accumulated transcript")
	}

	// Detection state is persisted through the session store.
	st := session.New(kv)
	if v, ok := st.MRN(context.Background()); !ok || v != "AB123" {
		t.Errorf("persisted MRN = %q, %v", v, ok)
	}
	if rec := st.Session(context.Background()); rec.Template != "Discharge Summary" {
		t.Errorf("persisted session record = %+v", rec)
	}
}

func TestController_NoteFlow(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- finalSet("take a note")
	if got := recv(t, rec.commands, "start-note command"); got.action != command.ActionStartNote {
		t.Fatalf("got %q", got.action)
	}

	// "mute" is dictated, not executed, while the note is open.
	sess.ResultsCh <- finalSet("mute")
	if got := recv(t, rec.transcripts, "note dictation"); got.text != "mute" || !got.final {
		t.Fatalf("note dictation = %+v", got)
	}

	sess.ResultsCh <- finalSet("create")
	if got := recv(t, rec.commands, "stop-note command"); got.action != command.ActionStopNote {
		t.Fatalf("got %q", got.action)
	}
	if got := recv(t, rec.transcripts, "flushed note"); got.text != "mute" || !got.final {
		t.Fatalf("flushed note = %+v", got)
	}
}

func TestController_StopFlushesNote(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- finalSet("take a note")
	recv(t, rec.commands, "start-note command")
	sess.ResultsCh <- finalSet("patient improving")
	recv(t, rec.transcripts, "note dictation")

	c.Stop()

	if got := recv(t, rec.commands, "stop-note on Stop"); got.action != command.ActionStopNote {
		t.Fatalf("got %q", got.action)
	}
	if got := recv(t, rec.transcripts, "flushed note"); got.text != "patient improving" {
		t.Fatalf("flushed note = %+v", got)
	}
}

func TestController_RestartOnRecoverableError(t *testing.T) {
	t.Parallel()

	s1 := mock.NewSession()
	s2 := mock.NewSession()
	p := &mock.Provider{Sessions: []recognizer.Session{s1, s2}}
	rec := newRecorder()
	c := New(p, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	s1.ErrorsCh <- recognizer.Error{Code: recognizer.CodeNoSpeech, Message: "no speech detected"}

	if got := recv(t, rec.errs, "error callback"); got.code != string(recognizer.CodeNoSpeech) {
		t.Fatalf("error code = %q", got.code)
	}

	// The replacement session is live: results flow again.
	s2.ResultsCh <- finalSet("disconnect")
	if got := recv(t, rec.commands, "command after restart"); got.action != command.ActionDisconnect {
		t.Fatalf("got %q", got.action)
	}

	if calls := p.Calls(); len(calls) != 2 {
		t.Errorf("provider started %d times, want 2", len(calls))
	}
	if !s1.Closed() {
		t.Error("failed session should be closed before restart")
	}
	if !c.Listening() {
		t.Error("controller should still be listening after a transparent restart")
	}
}

// flakyProvider hands out one good session, then fails every Start.
type flakyProvider struct {
	mu    sync.Mutex
	calls int
	first recognizer.Session
}

func (p *flakyProvider) Start(context.Context, recognizer.Config) (recognizer.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == 1 {
		return p.first, nil
	}
	return nil, errors.New("bridge unreachable")
}

func TestController_RestartFailureStopsListening(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&flakyProvider{first: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	recv(t, rec.states, "listen state")

	sess.ErrorsCh <- recognizer.Error{Code: recognizer.CodeNetwork, Message: "connection dropped"}

	if got := recv(t, rec.errs, "transient error"); got.code != string(recognizer.CodeNetwork) {
		t.Fatalf("error code = %q", got.code)
	}
	if got := recv(t, rec.errs, "restart failure"); got.code != "restart-failed" {
		t.Fatalf("error code = %q", got.code)
	}
	if state := recv(t, rec.states, "listen state after failed restart"); state {
		t.Error("listening should drop after a failed restart")
	}
	if c.Listening() {
		t.Error("Listening() still true after failed restart")
	}
}

func TestController_NilProvider(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	c := New(nil, nil, rec.callbacks())
	defer c.Destroy()

	err := c.Start(context.Background())
	if !errors.Is(err, recognizer.ErrUnavailable) {
		t.Fatalf("Start = %v, want ErrUnavailable", err)
	}
	if got := recv(t, rec.errs, "unavailable error"); got.code != "unavailable" {
		t.Errorf("error code = %q", got.code)
	}
	if c.Listening() {
		t.Error("controller must not report listening without a provider")
	}
}

func TestController_StartIdempotent(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Session: mock.NewSession()}
	c := New(p, nil, Callbacks{})
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start = %v, want nil no-op", err)
	}
	if calls := p.Calls(); len(calls) != 1 {
		t.Errorf("provider started %d times, want 1", len(calls))
	}
}

func TestController_StartAfterDestroy(t *testing.T) {
	t.Parallel()

	c := New(&mock.Provider{Session: mock.NewSession()}, nil, Callbacks{})
	c.Destroy()

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start after Destroy should fail")
	}
}

func TestController_StartConfig(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Session: mock.NewSession()}
	c := New(p, nil, Callbacks{}, WithLanguage("en-US"))
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider started %d times", len(calls))
	}
	if calls[0].Cfg.Language != "en-US" || !calls[0].Cfg.Interim {
		t.Errorf("Start config = %+v", calls[0].Cfg)
	}
}

func TestController_ResetDetection(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- finalSet("MRN AB123")
	recv(t, rec.transcripts, "dictation")

	// Stop first so the event loop has drained and no scan races the reset.
	c.Stop()
	c.ResetDetection()

	if det := c.Detection(); det != (extract.Detection{}) {
		t.Errorf("Detection after reset = %+v", det)
	}
	if c.Transcript() != "" {
		t.Errorf("Transcript after reset = %q", c.Transcript())
	}
}

func TestController_ZeroMetricsInstance(t *testing.T) {
	t.Parallel()

	// The fallback metrics instance has no instruments. The full listen,
	// dictate, detect, stop cycle must still run without panicking.
	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks(),
		WithTemplates([]string{"Discharge Summary"}),
		WithMetrics(&observe.Metrics{}),
	)
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sess.ResultsCh <- interimSet("the patient")
	recv(t, rec.transcripts, "interim transcript")

	sess.ResultsCh <- finalSet("MRN AB123 use the discharge summary")
	recv(t, rec.transcripts, "dictation transcript")

	det := recv(t, rec.detections, "detection callback")
	if det.MRN != "AB123" {
		t.Errorf("MRN = %q", det.MRN)
	}

	c.Stop()
	if c.Listening() {
		t.Error("Listening() still true after Stop")
	}
}

func TestController_SetTemplates(t *testing.T) {
	t.Parallel()

	sess := mock.NewSession()
	rec := newRecorder()
	c := New(&mock.Provider{Session: sess}, nil, rec.callbacks())
	defer c.Destroy()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.SetTemplates([]string{"Operative Report"})

	sess.ResultsCh <- finalSet("MRN AB123 for the operative report")
	recv(t, rec.transcripts, "dictation")

	det := recv(t, rec.detections, "detection with runtime templates")
	if det.Template != "Operative Report" {
		t.Errorf("Template = %q", det.Template)
	}
}
