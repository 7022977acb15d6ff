package extract

import "testing"

func TestNormalizeNumberWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spoken-run", "one two three", "123"},
		{"oh-as-zero", "oh seven", "07"},
		{"mixed-spoken-literal", "five 5 five", "555"},
		{"run-after-letters", "MRN A B one two three", "MRN A B 123"},
		{"separate-runs", "one two pause three four", "12 pause 34"},
		{"punctuation-stripped", "one, two, three.", "123"},
		{"no-digits", "hello world", "hello world"},
		{"casing-preserved-elsewhere", "Patient Seven", "Patient 7"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeNumberWords(tt.in); got != tt.want {
				t.Errorf("NormalizeNumberWords(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
