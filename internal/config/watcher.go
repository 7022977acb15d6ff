package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-checks the file when no
// interval option is given.
const defaultPollInterval = 5 * time.Second

// snapshot is one observed state of the config file: the parsed document
// plus enough file metadata to tell the next poll whether anything moved.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and reports edits through a callback. Polling
// keeps the dependency surface flat compared to inotify wrappers, and a few
// seconds of reload latency is irrelevant for a hand-edited file. The main
// runtime consumer is the template list: edits to detection.templates take
// effect without a restart.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu   sync.Mutex
	last snapshot

	quit     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the polling interval. Non-positive values are
// ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path, then keeps polling it in the
// background. onChange fires with the previous and the freshly loaded config
// whenever the file content changes and still parses and validates; an edit
// that breaks validation is logged and the old config stays in place.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.snapshot()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.last = snap

	go w.run()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Stop terminates the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan is one poll cycle. The mtime pre-check skips the read and hash work
// on the common unchanged path; the content hash then decides whether the
// file merely got touched or actually edited.
func (w *Watcher) scan() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	seen := w.last.mtime
	w.mu.Unlock()

	if info.ModTime().Equal(seen) {
		return
	}

	snap, err := w.snapshot()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	old, changed := w.swap(snap)
	if !changed {
		return
	}

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		// Outside the lock, so the callback may call Current().
		w.onChange(old, snap.cfg)
	}
}

// swap installs snap and reports whether the content differs from the last
// snapshot. A pure mtime bump still advances the stored metadata so the next
// poll stays cheap.
func (w *Watcher) swap(snap snapshot) (old *Config, changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if snap.sum == w.last.sum {
		w.last.mtime = snap.mtime
		return nil, false
	}
	old = w.last.cfg
	w.last = snap
	return old, true
}

// snapshot reads, hashes, and parses the file in one pass. Parse or
// validation failures surface as errors so callers keep the prior snapshot.
func (w *Watcher) snapshot() (snapshot, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}

	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
