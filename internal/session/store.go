// Package session is a thin persistence façade over key-value storage for
// the fields detected during a dictation session: the last known MRN,
// template, transcript, and a merged session record.
//
// Persistence here is best-effort by contract. Storage failures are caught
// at this boundary, logged, and never propagated — a failed save leaves
// prior state unchanged, a failed read reports "absent". There are no
// retries. The host UI never sees a storage error.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medvoice/scribectl/pkg/store"
)

// Storage keys. Namespaced so the KV can be shared with other components.
const (
	keyMRN        = "scribe.mrn"
	keyTemplate   = "scribe.template"
	keyTranscript = "scribe.transcript"
	keySession    = "scribe.session"
)

// Record is the merged session blob persisted under the session key.
type Record struct {
	// ID identifies this record. Assigned on first save, stable across
	// merges until ClearAll.
	ID string `json:"id"`

	MRN        string `json:"mrn,omitempty"`
	Template   string `json:"template,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// UpdatedAt is the unix-millisecond timestamp of the last merge.
	UpdatedAt int64 `json:"updated_at"`
}

// Partial carries the fields to merge into the stored session record.
// Nil fields are left untouched.
type Partial struct {
	MRN        *string
	Template   *string
	Transcript *string
}

// Store wraps a store.KV with the session persistence policy.
// Safe for concurrent use when the underlying KV is.
type Store struct {
	kv  store.KV
	now func() time.Time
}

// New returns a Store over kv.
func New(kv store.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SaveMRN persists the detected MRN. Best-effort.
func (s *Store) SaveMRN(ctx context.Context, mrn string) { s.save(ctx, keyMRN, mrn) }

// SaveTemplate persists the detected template name. Best-effort.
func (s *Store) SaveTemplate(ctx context.Context, template string) {
	s.save(ctx, keyTemplate, template)
}

// SaveTranscript persists the accumulated transcript text. Best-effort.
func (s *Store) SaveTranscript(ctx context.Context, transcript string) {
	s.save(ctx, keyTranscript, transcript)
}

// MRN returns the persisted MRN. ok is false when absent or unreadable.
func (s *Store) MRN(ctx context.Context) (string, bool) { return s.load(ctx, keyMRN) }

// Template returns the persisted template name.
func (s *Store) Template(ctx context.Context) (string, bool) { return s.load(ctx, keyTemplate) }

// Transcript returns the persisted transcript text.
func (s *Store) Transcript(ctx context.Context) (string, bool) { return s.load(ctx, keyTranscript) }

// ClearMRN removes the persisted MRN. Best-effort.
func (s *Store) ClearMRN(ctx context.Context) { s.clear(ctx, keyMRN) }

// ClearTemplate removes the persisted template name. Best-effort.
func (s *Store) ClearTemplate(ctx context.Context) { s.clear(ctx, keyTemplate) }

// ClearTranscript removes the persisted transcript. Best-effort.
func (s *Store) ClearTranscript(ctx context.Context) { s.clear(ctx, keyTranscript) }

// SaveSession merges p into the stored session record and stamps it with a
// fresh timestamp. A corrupt or absent stored record starts a new one.
// Best-effort.
func (s *Store) SaveSession(ctx context.Context, p Partial) {
	rec := s.Session(ctx)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if p.MRN != nil {
		rec.MRN = *p.MRN
	}
	if p.Template != nil {
		rec.Template = *p.Template
	}
	if p.Transcript != nil {
		rec.Transcript = *p.Transcript
	}
	rec.UpdatedAt = s.now().UnixMilli()

	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("session: marshal record failed", "error", err)
		return
	}
	s.save(ctx, keySession, string(data))
}

// Session returns the stored session record, or a zero Record when absent
// or unreadable.
func (s *Store) Session(ctx context.Context) Record {
	raw, ok := s.load(ctx, keySession)
	if !ok {
		return Record{}
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("session: unmarshal record failed", "error", err)
		return Record{}
	}
	return rec
}

// ClearAll removes every session key. Called when the host closes the
// record-review panel. Best-effort.
func (s *Store) ClearAll(ctx context.Context) {
	for _, key := range []string{keyMRN, keyTemplate, keyTranscript, keySession} {
		s.clear(ctx, key)
	}
}

func (s *Store) save(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		slog.Warn("session: save failed", "key", key, "error", err)
	}
}

func (s *Store) load(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("session: read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) clear(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, key); err != nil {
		slog.Warn("session: clear failed", "key", key, "error", err)
	}
}
