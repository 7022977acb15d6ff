package extract

import (
	"sync"
)

// Detection is a snapshot of the fields found so far in the current
// session, plus the full accumulated transcript at the time of the last
// scan.
type Detection struct {
	MRN      string
	Template string
	Text     string
}

// Complete reports whether both fields have been found.
func (d Detection) Complete() bool {
	return d.MRN != "" && d.Template != ""
}

// Detector runs MRN and template detection over every finalized utterance
// and tracks what has been found so far. Each field is overwritten — never
// appended — when a new, different match appears (last-write-wins per
// field).
//
// Safe for concurrent use.
type Detector struct {
	mrn  *MRNExtractor
	tmpl *TemplateMatcher

	mu    sync.Mutex
	state Detection
}

// NewDetector combines an MRN extractor and a template matcher into a
// stateful per-session detector.
func NewDetector(mrn *MRNExtractor, tmpl *TemplateMatcher) *Detector {
	return &Detector{mrn: mrn, tmpl: tmpl}
}

// Scan processes one finalized utterance. utterance keeps original casing
// (MRN rules are casing-sensitive in their fallback); templates is the
// currently configured display-name list, in priority order; fullText is
// the accumulated session transcript.
//
// The returned snapshot reflects state after this utterance. complete is
// true whenever both fields are set — it reports true on every subsequent
// scan too, so consumers of the combined-detection event must be
// idempotent.
func (d *Detector) Scan(utterance string, templates []string, fullText string) (det Detection, complete bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mrn, ok := d.mrn.Detect(utterance); ok && mrn != d.state.MRN {
		d.state.MRN = mrn
	}
	if tmpl, ok := d.tmpl.Match(utterance, templates); ok && tmpl != d.state.Template {
		d.state.Template = tmpl
	}
	d.state.Text = fullText

	return d.state, d.state.Complete()
}

// Snapshot returns the current detection state.
func (d *Detector) Snapshot() Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reset clears both detected fields and the transcript snapshot.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Detection{}
}
