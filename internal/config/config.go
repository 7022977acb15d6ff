// Package config provides the configuration schema, loader, and file
// watcher for the scribectl voice-command service.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for scribectl.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Detection  DetectionConfig  `yaml:"detection"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the metrics server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RecognizerConfig selects and configures the speech recognition backend.
type RecognizerConfig struct {
	// Provider is the recognizer backend name. Valid values: "remote".
	// Empty means no recognizer is available and Start will fail with the
	// unavailable-capability error.
	Provider string `yaml:"provider"`

	// URL is the WebSocket endpoint of the remote STT bridge.
	URL string `yaml:"url"`

	// FallbackURLs are additional bridge endpoints tried in order when the
	// primary fails to start a session. Each backend gets its own circuit
	// breaker.
	FallbackURLs []string `yaml:"fallback_urls"`

	// Token is an optional bearer token for the bridge.
	Token string `yaml:"token"`

	// Language is the BCP-47 recognition language tag (e.g., "en-US").
	Language string `yaml:"language"`

	// InterimThrottleMS is the minimum interval between interim transcript
	// emissions, in milliseconds. Zero keeps the built-in default (800).
	InterimThrottleMS int `yaml:"interim_throttle_ms"`
}

// DetectionConfig tunes field extraction.
type DetectionConfig struct {
	// MRNDigitPrefix is the letter code prepended to digits-only MRNs.
	// Empty keeps the built-in default.
	MRNDigitPrefix string `yaml:"mrn_digit_prefix"`

	// FuzzyThreshold is the significant-word overlap fraction required for
	// a fuzzy template match. Zero keeps the built-in default (0.70).
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// WordSimilarity is the Jaro-Winkler score above which a near-miss
	// word counts as present. Zero keeps the built-in default (0.85).
	WordSimilarity float64 `yaml:"word_similarity"`

	// Templates is the ordered list of clinical note template display
	// names. Order is match priority. The list may also be updated at
	// runtime through the controller.
	Templates []string `yaml:"templates"`
}

// StorageConfig selects the key-value backend for session persistence.
type StorageConfig struct {
	// Backend is the store name. Valid values: "memory", "postgres".
	// Empty defaults to "memory".
	Backend string `yaml:"backend"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}
