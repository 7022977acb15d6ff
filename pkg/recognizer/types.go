package recognizer

// Hypothesis is one recognition slot from the active utterance window.
// Only the best alternative per slot is ever surfaced.
type Hypothesis struct {
	// Text is the recognized speech content with original casing.
	Text string

	// IsFinal indicates whether the recognizer has committed to this slot.
	// Non-final slots may be replaced wholesale on the next result set.
	IsFinal bool

	// Confidence is the recognizer's confidence score (0.0–1.0). May be zero
	// when the backend does not report confidence.
	Confidence float64
}

// ResultSet is the complete current set of hypothesis slots for the active
// utterance window. Recognizers deliver the full set on every callback, not
// a delta — earlier interim slots may have been replaced since the previous
// set, which is why consumers must always scan from index 0.
type ResultSet struct {
	Hypotheses []Hypothesis
}

// ErrorCode is the small fixed vocabulary of recognizer error codes.
type ErrorCode string

const (
	// CodeNoSpeech means the recognizer timed out without detecting speech.
	CodeNoSpeech ErrorCode = "no-speech"

	// CodeAborted means the session was aborted by the backend.
	CodeAborted ErrorCode = "aborted"

	// CodeAudioCapture means the audio input device failed or was revoked.
	CodeAudioCapture ErrorCode = "audio-capture"

	// CodeNetwork means the backend connection dropped.
	CodeNetwork ErrorCode = "network"

	// CodeNotAllowed means the host denied permission to capture audio.
	CodeNotAllowed ErrorCode = "not-allowed"
)

// Recoverable reports whether a session that hit this error can simply be
// restarted. Permission errors are not recoverable — restarting would fail
// the same way.
func (c ErrorCode) Recoverable() bool {
	switch c {
	case CodeNoSpeech, CodeAborted, CodeAudioCapture, CodeNetwork:
		return true
	}
	return false
}

// Error is an error notification from a live recognition session.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}
