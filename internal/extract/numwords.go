package extract

import "strings"

// digitWords maps spoken digit words to their digit character. "oh" is
// accepted for zero because recognizers routinely transcribe it that way
// when identifiers are read aloud.
var digitWords = map[string]string{
	"zero":  "0",
	"oh":    "0",
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
	"six":   "6",
	"seven": "7",
	"eight": "8",
	"nine":  "9",
}

// NormalizeNumberWords rewrites spoken digit words into digit runs so the
// MRN patterns can match identifiers that were read aloud digit by digit.
// Consecutive digit tokens — spoken or literal — are merged into a single
// run: "MRN A B one two three" becomes "MRN A B 123".
//
// Everything that is not a digit token passes through unchanged, including
// casing and punctuation on other words.
func NormalizeNumberWords(s string) string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	var run strings.Builder

	flush := func() {
		if run.Len() > 0 {
			out = append(out, run.String())
			run.Reset()
		}
	}

	for _, f := range fields {
		bare := strings.Trim(strings.ToLower(f), ".,;:!?")
		if d, ok := digitWords[bare]; ok {
			run.WriteString(d)
			continue
		}
		if bare != "" && isDigits(bare) {
			run.WriteString(bare)
			continue
		}
		flush()
		out = append(out, f)
	}
	flush()

	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
