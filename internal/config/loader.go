package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidRecognizerProviders lists known recognizer backend names.
var ValidRecognizerProviders = []string{"remote"}

// ValidStorageBackends lists known storage backend names.
var ValidStorageBackends = []string{"memory", "postgres"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Recognizer.Provider != "" && !slices.Contains(ValidRecognizerProviders, cfg.Recognizer.Provider) {
		errs = append(errs, fmt.Errorf("recognizer.provider %q is unknown; valid values: %v", cfg.Recognizer.Provider, ValidRecognizerProviders))
	}
	if cfg.Recognizer.Provider == "remote" && cfg.Recognizer.URL == "" {
		errs = append(errs, errors.New("recognizer.url must be set when recognizer.provider is \"remote\""))
	}
	if len(cfg.Recognizer.FallbackURLs) > 0 && cfg.Recognizer.Provider != "remote" {
		errs = append(errs, errors.New("recognizer.fallback_urls requires recognizer.provider \"remote\""))
	}
	for i, u := range cfg.Recognizer.FallbackURLs {
		if u == "" {
			errs = append(errs, fmt.Errorf("recognizer.fallback_urls[%d] must not be empty", i))
		}
	}
	if cfg.Recognizer.InterimThrottleMS < 0 {
		errs = append(errs, fmt.Errorf("recognizer.interim_throttle_ms must not be negative, got %d", cfg.Recognizer.InterimThrottleMS))
	}

	if t := cfg.Detection.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("detection.fuzzy_threshold must be in [0, 1], got %g", t))
	}
	if t := cfg.Detection.WordSimilarity; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("detection.word_similarity must be in [0, 1], got %g", t))
	}

	backend := cfg.Storage.Backend
	if backend != "" && !slices.Contains(ValidStorageBackends, backend) {
		errs = append(errs, fmt.Errorf("storage.backend %q is unknown; valid values: %v", backend, ValidStorageBackends))
	}
	if backend == "postgres" && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn must be set when storage.backend is \"postgres\""))
	}

	return errors.Join(errs...)
}
