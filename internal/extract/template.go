package extract

import (
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultFuzzyThreshold is the minimum fraction of a template's
	// significant words that must appear in the utterance.
	DefaultFuzzyThreshold = 0.70

	// DefaultWordSimilarity is the minimum Jaro-Winkler score for a
	// near-miss utterance word to count as "present". Matches the fuzzy
	// fallback threshold used for entity correction elsewhere in the
	// ecosystem.
	DefaultWordSimilarity = 0.85

	// significantWordLen is the minimum length for a template word to be
	// considered significant during fuzzy matching.
	significantWordLen = 4
)

// synonyms collapses common spoken variants before any comparison. The
// table is fixed and deliberately small; it is applied to both the
// utterance and the template name so either side may use either form.
var synonyms = map[string]string{
	"consult":   "consultation",
	"consults":  "consultation",
	"exam":      "examination",
	"check-up":  "checkup",
	"follow-up": "followup",
	"post-op":   "postoperative",
	"postop":    "postoperative",
}

// stopwords are filler words excluded from the significant-word set.
var stopwords = map[string]struct{}{
	"note": {},
	"form": {},
	"the":  {},
}

// TemplateMatcher matches an utterance against an ordered list of template
// display names. Supplied order is priority order: the first configured
// template satisfying any rule wins.
//
// Read-only after construction; safe for concurrent use.
type TemplateMatcher struct {
	fuzzyThreshold float64
	wordSimilarity float64
}

// TemplateOption is a functional option for configuring a [TemplateMatcher].
type TemplateOption func(*TemplateMatcher)

// WithFuzzyThreshold sets the significant-word overlap fraction required
// for a fuzzy match. Values outside (0, 1] keep the default.
func WithFuzzyThreshold(threshold float64) TemplateOption {
	return func(m *TemplateMatcher) {
		if threshold > 0 && threshold <= 1 {
			m.fuzzyThreshold = threshold
		}
	}
}

// WithWordSimilarity sets the Jaro-Winkler score above which a near-miss
// word counts as present. Values outside (0, 1] keep the default.
func WithWordSimilarity(threshold float64) TemplateOption {
	return func(m *TemplateMatcher) {
		if threshold > 0 && threshold <= 1 {
			m.wordSimilarity = threshold
		}
	}
}

// NewTemplateMatcher returns a matcher with default thresholds.
func NewTemplateMatcher(opts ...TemplateOption) *TemplateMatcher {
	m := &TemplateMatcher{
		fuzzyThreshold: DefaultFuzzyThreshold,
		wordSimilarity: DefaultWordSimilarity,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the first template from templates (display form, supplied
// order) that the utterance refers to, or ("", false) when none does.
//
// Per candidate, three rules are tried in order: exact containment of the
// normalized name, significant-word overlap at or above the fuzzy
// threshold, and a phrase-proximity fallback built from the first/last and
// first-two significant words.
func (m *TemplateMatcher) Match(utterance string, templates []string) (string, bool) {
	normUtt := normalizeTemplateText(utterance)
	if normUtt == "" {
		return "", false
	}
	uttWords := strings.Fields(normUtt)

	for _, tmpl := range templates {
		normName := normalizeTemplateText(tmpl)
		if normName == "" {
			continue
		}

		if strings.Contains(normUtt, normName) {
			slog.Debug("extract: template exact match", "template", tmpl)
			return tmpl, true
		}

		sig := significantWords(normName)
		if len(sig) > 0 && m.overlap(sig, uttWords) >= m.fuzzyThreshold {
			slog.Debug("extract: template fuzzy match", "template", tmpl)
			return tmpl, true
		}

		if matchesPhrase(sig, normUtt) {
			slog.Debug("extract: template phrase match", "template", tmpl)
			return tmpl, true
		}
	}
	return "", false
}

// normalizeTemplateText lowercases, applies the synonym table word by
// word, and collapses whitespace.
func normalizeTemplateText(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		bare := strings.Trim(w, ".,;:!?")
		if rep, ok := synonyms[bare]; ok {
			words[i] = rep
		} else {
			words[i] = bare
		}
	}
	return strings.Join(words, " ")
}

// significantWords filters the normalized template name down to words long
// enough to carry meaning, minus stopwords.
func significantWords(normName string) []string {
	var sig []string
	for _, w := range strings.Fields(normName) {
		if len(w) < significantWordLen {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		sig = append(sig, w)
	}
	return sig
}

// overlap computes the fraction of sig words present in the utterance.
// A word is present when it appears verbatim or when some utterance word
// is a Jaro-Winkler near miss for it.
func (m *TemplateMatcher) overlap(sig, uttWords []string) float64 {
	found := 0
	for _, w := range sig {
		if m.wordPresent(w, uttWords) {
			found++
		}
	}
	return float64(found) / float64(len(sig))
}

func (m *TemplateMatcher) wordPresent(word string, uttWords []string) bool {
	for _, uw := range uttWords {
		if uw == word {
			return true
		}
		if matchr.JaroWinkler(uw, word, false) >= m.wordSimilarity {
			return true
		}
	}
	return false
}

// matchesPhrase tests the two short fallback phrases — first word + last
// word, and the first two words — against the normalized utterance.
func matchesPhrase(sig []string, normUtt string) bool {
	if len(sig) < 2 {
		return false
	}
	firstLast := sig[0] + " " + sig[len(sig)-1]
	firstTwo := sig[0] + " " + sig[1]
	return strings.Contains(normUtt, firstLast) || strings.Contains(normUtt, firstTwo)
}
