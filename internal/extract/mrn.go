// Package extract pulls structured fields — a patient record identifier
// (MRN) and a clinical note template name — out of unstructured, noisy
// utterance text.
//
// MRN detection applies a fixed, ordered list of pattern rules where order
// encodes priority: the first rule that matches wins. Template detection
// matches against an externally supplied, ordered list of display names;
// the extractor never invents or hardcodes that list.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultDigitPrefix is prepended when an MRN is spoken as digits only
// ("MRN number 123"). The two-letter code is a site policy, so it is
// configurable rather than baked into the pattern table.
const DefaultDigitPrefix = "MR"

// mrnRule pairs a compiled pattern with a label for diagnostics. The
// capture group 1 is the raw candidate tail.
type mrnRule struct {
	name       string
	re         *regexp.Regexp
	digitsOnly bool
	spelled    bool
}

// mrnRules is evaluated top to bottom; the first match wins.
var mrnRules = []mrnRule{
	{
		// "MRN number 123": tested ahead of the alnum rule so the word
		// "number" is never captured as the letter half of an identifier.
		name:       "keyword-number",
		re:         regexp.MustCompile(`(?i)\bMRN[\s-]*number\s+([0-9]+)`),
		digitsOnly: true,
	},
	{
		// "MRN AB123", "MRN-AB123", "MRN AB 123": keyword followed by a
		// letters-then-digits or digits-then-letters token. The reversed
		// form takes a hyphen separator only — a space there would swallow
		// the word after a bare digit run.
		name: "keyword-alnum",
		re:   regexp.MustCompile(`(?i)\bMRN[\s-]*([A-Za-z]+[\s-]?[0-9]+|[0-9]+-?[A-Za-z]+[0-9]*)`),
	},
	{
		// "MRN 123": digits only. The configured letter prefix is injected
		// during normalization.
		name:       "keyword-digits",
		re:         regexp.MustCompile(`(?i)\bMRN[\s-]*([0-9]+)`),
		digitsOnly: true,
	},
	{
		// "patient's MRN is AB123": possessive-phrase variant.
		name: "possessive",
		re:   regexp.MustCompile(`(?i)\bpatient'?s?\s+MRN\s+(?:is\s+)?([A-Za-z]+[\s-]?[0-9]+)`),
	},
	{
		// "M R N A B 123": letter-by-letter spoken form. The raw capture is
		// greedy, so the candidate is re-assembled token by token and stops
		// at the first ordinary word; without that cut the rule would
		// swallow the rest of the sentence ("M R N A B 123 please call
		// cardiology"). Number-word normalization has already collapsed
		// spoken digits by the time this rule runs.
		name:    "spelled-out",
		re:      regexp.MustCompile(`(?i)\bM[\s.]*R[\s.]*N\b[\s:.-]*([A-Za-z0-9]+(?:[\s.-][A-Za-z0-9]+)*)`),
		spelled: true,
	},
	{
		// Bare token without the MRN keyword: two or more uppercase letters
		// followed by three or more digits. Catches identifiers spoken
		// without context at the cost of occasional false positives.
		name: "bare-token",
		re:   regexp.MustCompile(`\b([A-Z]{2,}[0-9]{3,})\b`),
	},
}

// MRNExtractor detects MRN-shaped tokens in finalized utterances.
// Read-only after construction; safe for concurrent use.
type MRNExtractor struct {
	digitPrefix string
}

// MRNOption is a functional option for configuring an [MRNExtractor].
type MRNOption func(*MRNExtractor)

// WithDigitPrefix sets the letter code prepended to digits-only MRNs.
// Empty values keep the default.
func WithDigitPrefix(prefix string) MRNOption {
	return func(e *MRNExtractor) {
		if prefix != "" {
			e.digitPrefix = strings.ToUpper(prefix)
		}
	}
}

// NewMRNExtractor returns an extractor with the default digit prefix.
func NewMRNExtractor(opts ...MRNOption) *MRNExtractor {
	e := &MRNExtractor{digitPrefix: DefaultDigitPrefix}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Detect scans one finalized utterance (original casing) and returns the
// first matching rule's candidate, normalized, or ("", false) when nothing
// matches. Detection is idempotent: re-running Detect on a previously
// returned value yields the identical value.
func (e *MRNExtractor) Detect(utterance string) (string, bool) {
	text := NormalizeNumberWords(utterance)

	for _, rule := range mrnRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := m[1]
		if rule.spelled {
			raw = assembleSpelled(raw)
			if raw == "" {
				continue
			}
		}
		candidate := normalizeMRN(raw)
		if rule.digitsOnly {
			candidate = e.digitPrefix + candidate
		}
		if !validMRN(candidate) {
			continue
		}
		slog.Debug("extract: mrn matched", "rule", rule.name, "mrn", candidate)
		return candidate, true
	}
	return "", false
}

// spelledFiller lists connective words skipped before the identifier starts
// ("the MRN is AB123"). Only leading tokens are skipped.
var spelledFiller = map[string]struct{}{
	"is":     {},
	"number": {},
}

// assembleSpelled rebuilds an identifier from the greedy spelled-out tail.
// Leading filler is dropped, then tokens are accumulated while they look
// like identifier fragments: digit runs, single or double letters, or mixed
// letter-digit tokens. The first ordinary word ends the identifier.
func assembleSpelled(raw string) string {
	var b strings.Builder
	for _, tok := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '.'
	}) {
		if b.Len() == 0 {
			if _, skip := spelledFiller[strings.ToLower(tok)]; skip {
				continue
			}
		}
		if !spelledToken(tok) {
			break
		}
		b.WriteString(tok)
	}
	return b.String()
}

// spelledToken reports whether tok can be part of a spelled-out identifier.
func spelledToken(tok string) bool {
	var letters, digits int
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			letters++
		default:
			return false
		}
	}
	switch {
	case digits > 0 && letters > 0:
		// A complete token like "AB123" is an identifier on its own.
		return true
	case digits > 0:
		return true
	default:
		// Letter runs longer than two are ordinary words, not spelled
		// letters.
		return letters > 0 && letters <= 2
	}
}

// normalizeMRN strips internal whitespace and hyphens and upper-cases.
func normalizeMRN(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == ' ' || r == '\t' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// validMRN requires at least one letter and at least one digit. A
// pure-digit or pure-letter token is never accepted; the digits-only rule
// gains its synthetic letter prefix before this check runs.
func validMRN(s string) bool {
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}
