// Package command classifies finalized utterances into navigation commands
// or free dictation.
//
// Matching is ordered and first-match-wins: each finalized utterance is
// tested against a fixed sequence of regex rules, and rule order is a
// contract, not an optimization — "disconnect" must be tested before
// "connect" and "unmute" before "mute" because the looser word is contained
// in the stricter one. Caller-supplied override patterns always run first.
//
// The package also owns the two-state dictation mode machine. While a note
// is being taken, spoken words that would otherwise be commands ("mute",
// "disconnect") are dictated verbatim; only the note-ending rule still runs.
package command

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Action is a classified navigation command.
type Action string

const (
	ActionConnect     Action = "connect"
	ActionDisconnect  Action = "disconnect"
	ActionStartStream Action = "start_stream"
	ActionStopStream  Action = "stop_stream"
	ActionMute        Action = "mute"
	ActionUnmute      Action = "unmute"
	ActionHideVideo   Action = "hide_video"
	ActionShowVideo   Action = "show_video"
	ActionUrgent      Action = "urgent"
	ActionStartNote   Action = "start_note"
	ActionStopNote    Action = "stop_note"
)

// Mode is the dictation mode state.
type Mode int

const (
	// ModeNormal routes finalized utterances through the full command
	// grammar. Initial state.
	ModeNormal Mode = iota

	// ModeNoteTaking appends every utterance to the note buffer instead of
	// classifying it. Only the note-ending rule is still evaluated.
	ModeNoteTaking
)

// String returns the mode name for logging.
func (m Mode) String() string {
	if m == ModeNoteTaking {
		return "note-taking"
	}
	return "normal"
}

// Pattern pairs a compiled regex with the action it classifies to.
// Used both for the built-in grammar and for caller-supplied overrides.
type Pattern struct {
	// Regex is the compiled pattern, matched against the trimmed,
	// case-folded utterance.
	Regex *regexp.Regexp

	// Name is a human-readable label for logging.
	Name string

	// Action is the command emitted when Regex matches.
	Action Action
}

// Outcome is the result of classifying one finalized utterance.
type Outcome struct {
	// Action is the classified command. Empty when the utterance is plain
	// dictation.
	Action Action

	// Dictation is the text to surface as a final transcript chunk. Set
	// when no command matched, or while in note-taking mode.
	Dictation string

	// Note is the flushed note buffer. Set only when Action is
	// ActionStopNote and text was buffered.
	Note string
}

// IsCommand reports whether a command rule matched.
func (o Outcome) IsCommand() bool { return o.Action != "" }

// Classifier matches finalized utterances against the command grammar and
// owns the dictation mode state machine.
//
// Only the mode and note buffer are mutable; everything else is read-only
// after construction. Safe for concurrent use.
type Classifier struct {
	overrides []Pattern
	patterns  []Pattern

	startNote *regexp.Regexp
	stopNote  *regexp.Regexp

	mu   sync.Mutex
	mode Mode
	note []string
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithOverrides prepends caller-supplied patterns. Overrides are tested
// before every built-in rule and take precedence on conflict.
func WithOverrides(patterns []Pattern) Option {
	return func(c *Classifier) {
		c.overrides = patterns
	}
}

// New returns a Classifier in normal mode with the built-in grammar.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		patterns:  builtinPatterns(),
		startNote: regexp.MustCompile(`\bnote\b`),
		stopNote:  regexp.MustCompile(`\bcreate\b`),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify routes one finalized utterance. text is expected lower-cased;
// Classify folds it anyway so callers cannot get the precedence rules wrong
// by passing original casing.
func (c *Classifier) Classify(text string) Outcome {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return Outcome{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Note-taking mode bypasses the whole grammar except the ending rule:
	// words that would otherwise be commands are dictated verbatim.
	if c.mode == ModeNoteTaking {
		if c.stopNote.MatchString(trimmed) {
			return c.endNoteLocked()
		}
		c.note = append(c.note, strings.TrimSpace(text))
		return Outcome{Dictation: strings.TrimSpace(text)}
	}

	for _, p := range c.overrides {
		if p.Regex.MatchString(trimmed) {
			slog.Debug("command: override matched", "pattern", p.Name, "action", p.Action)
			return Outcome{Action: p.Action}
		}
	}

	// Note control runs before all other rules so "take a note about the
	// connection" is never misrouted to the connect rule.
	if c.startNote.MatchString(trimmed) {
		c.mode = ModeNoteTaking
		c.note = nil
		slog.Debug("command: note mode entered", "text", trimmed)
		return Outcome{Action: ActionStartNote}
	}
	if c.stopNote.MatchString(trimmed) {
		// Already in normal mode: the transition is a no-op and there is
		// nothing buffered to flush.
		return Outcome{Action: ActionStopNote}
	}

	for _, p := range c.patterns {
		if p.Regex.MatchString(trimmed) {
			slog.Debug("command: matched", "pattern", p.Name, "action", p.Action)
			return Outcome{Action: p.Action}
		}
	}

	return Outcome{Dictation: strings.TrimSpace(text)}
}

// endNoteLocked flushes the buffer and returns to normal mode.
func (c *Classifier) endNoteLocked() Outcome {
	note := strings.Join(c.note, " ")
	c.note = nil
	c.mode = ModeNormal
	slog.Debug("command: note mode ended", "buffered_len", len(note))
	return Outcome{Action: ActionStopNote, Note: note}
}

// FlushNote forces the note buffer out if a note is in progress, returning
// (note, true). Used when listening stops externally so a note is never
// silently lost. Returns ("", false) in normal mode.
func (c *Classifier) FlushNote() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeNoteTaking {
		return "", false
	}
	out := c.endNoteLocked()
	return out.Note, true
}

// Mode returns the current dictation mode.
func (c *Classifier) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Reset returns to normal mode and discards any buffered note text.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeNormal
	c.note = nil
}

// builtinPatterns returns the built-in grammar in evaluation order.
// Containment pairs list the stricter word first.
func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name:   "disconnect",
			Regex:  regexp.MustCompile(`\bdisconnect\b`),
			Action: ActionDisconnect,
		},
		{
			Name:   "connect",
			Regex:  regexp.MustCompile(`\bconnect\b`),
			Action: ActionConnect,
		},
		{
			Name:   "unmute",
			Regex:  regexp.MustCompile(`\bunmute\b(\s+(the\s+)?(mic|microphone))?`),
			Action: ActionUnmute,
		},
		{
			Name:   "mute",
			Regex:  regexp.MustCompile(`\bmute\b`),
			Action: ActionMute,
		},
		{
			Name:   "start-stream",
			Regex:  regexp.MustCompile(`\bstart\b.*\b(stream|streaming|video|camera)\b`),
			Action: ActionStartStream,
		},
		{
			Name:   "stop-stream",
			Regex:  regexp.MustCompile(`\bstop\b.*\b(stream|streaming|video|camera)\b`),
			Action: ActionStopStream,
		},
		{
			Name:   "hide-video",
			Regex:  regexp.MustCompile(`\bhide\b(\s+(the\s+)?(video|camera|preview))?`),
			Action: ActionHideVideo,
		},
		{
			Name:   "show-video",
			Regex:  regexp.MustCompile(`\bshow\b(\s+(the\s+)?(video|camera|preview))?`),
			Action: ActionShowVideo,
		},
		{
			Name:   "urgent",
			Regex:  regexp.MustCompile(`\bsend\b\s+(an?\s+)?urgent\s+(message|alert)\b|\burgent\b.*\bmessage\b`),
			Action: ActionUrgent,
		},
	}
}
