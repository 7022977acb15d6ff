package command

import (
	"regexp"
	"testing"
)

func TestClassify_Actions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Action
	}{
		{"connect", "please connect to the console", ActionConnect},
		{"disconnect-before-connect", "disconnect now", ActionDisconnect},
		{"mute", "mute for a second", ActionMute},
		{"unmute-before-mute", "unmute the microphone", ActionUnmute},
		{"unmute-bare", "unmute", ActionUnmute},
		{"start-stream", "start the stream", ActionStartStream},
		{"start-camera", "start my camera", ActionStartStream},
		{"stop-stream", "stop streaming", ActionStopStream},
		{"hide", "hide the preview", ActionHideVideo},
		{"hide-bare", "hide", ActionHideVideo},
		{"show", "show video", ActionShowVideo},
		{"urgent-send", "send an urgent message", ActionUrgent},
		{"urgent-loose", "this is urgent please relay the message", ActionUrgent},
		{"start-note", "take a note about the patient", ActionStartNote},
		{"stop-note-normal-mode", "create", ActionStopNote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New()
			out := c.Classify(tt.text)
			if out.Action != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, out.Action, tt.want)
			}
		})
	}
}

func TestClassify_NotePrecedesOtherCommands(t *testing.T) {
	t.Parallel()

	// "note" beats "connect" even though both words are present.
	c := New()
	out := c.Classify("take a note about the connection issue")
	if out.Action != ActionStartNote {
		t.Errorf("got %q, want %q", out.Action, ActionStartNote)
	}
}

func TestClassify_NoMatchIsDictation(t *testing.T) {
	t.Parallel()

	c := New()
	out := c.Classify("The Patient Reports Mild Chest Pain")
	if out.IsCommand() {
		t.Fatalf("unexpected command %q", out.Action)
	}
	if out.Dictation != "The Patient Reports Mild Chest Pain" {
		t.Errorf("Dictation = %q, original casing should be preserved", out.Dictation)
	}
}

func TestClassify_EmptyText(t *testing.T) {
	t.Parallel()

	c := New()
	out := c.Classify("   ")
	if out.IsCommand() || out.Dictation != "" {
		t.Errorf("whitespace utterance produced %+v", out)
	}
}

func TestClassify_NoteModeOverride(t *testing.T) {
	t.Parallel()

	c := New()

	if out := c.Classify("note"); out.Action != ActionStartNote {
		t.Fatalf("start: got %q", out.Action)
	}
	if c.Mode() != ModeNoteTaking {
		t.Fatal("mode should be note-taking")
	}

	// Command words are dictated verbatim while a note is in progress.
	out := c.Classify("mute")
	if out.IsCommand() {
		t.Fatalf("command %q fired inside note mode", out.Action)
	}
	if out.Dictation != "mute" {
		t.Errorf("Dictation = %q", out.Dictation)
	}

	out = c.Classify("patient stable overnight")
	if out.Dictation != "patient stable overnight" {
		t.Errorf("Dictation = %q", out.Dictation)
	}

	out = c.Classify("create")
	if out.Action != ActionStopNote {
		t.Fatalf("end: got %q", out.Action)
	}
	if out.Note != "mute patient stable overnight" {
		t.Errorf("Note = %q", out.Note)
	}
	if c.Mode() != ModeNormal {
		t.Error("mode should return to normal")
	}
}

func TestClassify_NoteBufferClearedOnReentry(t *testing.T) {
	t.Parallel()

	c := New()
	c.Classify("note")
	c.Classify("first note text")
	c.Classify("create")

	c.Classify("note")
	out := c.Classify("create")
	if out.Note != "" {
		t.Errorf("stale buffer leaked into second note: %q", out.Note)
	}
}

func TestFlushNote(t *testing.T) {
	t.Parallel()

	c := New()

	if _, ok := c.FlushNote(); ok {
		t.Fatal("FlushNote in normal mode should report nothing to flush")
	}

	c.Classify("note")
	c.Classify("remember the dosage change")

	note, ok := c.FlushNote()
	if !ok {
		t.Fatal("FlushNote should flush an in-progress note")
	}
	if note != "remember the dosage change" {
		t.Errorf("note = %q", note)
	}
	if c.Mode() != ModeNormal {
		t.Error("mode should return to normal after flush")
	}
}

func TestClassify_Overrides(t *testing.T) {
	t.Parallel()

	c := New(WithOverrides([]Pattern{
		{
			Name:   "custom-disconnect",
			Regex:  regexp.MustCompile(`\bhang\s+up\b`),
			Action: ActionDisconnect,
		},
		{
			// Overrides win even against the note rule.
			Name:   "note-override",
			Regex:  regexp.MustCompile(`\bnote\b`),
			Action: ActionUrgent,
		},
	}))

	if out := c.Classify("hang up now"); out.Action != ActionDisconnect {
		t.Errorf("override: got %q", out.Action)
	}
	if out := c.Classify("take a note"); out.Action != ActionUrgent {
		t.Errorf("override precedence: got %q", out.Action)
	}
	if c.Mode() != ModeNormal {
		t.Error("override must not trip the mode machine")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	c := New()
	c.Classify("note")
	c.Classify("buffered text")
	c.Reset()

	if c.Mode() != ModeNormal {
		t.Error("Reset should return to normal mode")
	}
	if note, ok := c.FlushNote(); ok || note != "" {
		t.Errorf("Reset should discard the buffer, got %q", note)
	}
}
