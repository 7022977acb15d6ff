// Command scribectl runs the voice-command and dictation controller as a
// standalone service: it connects to a speech recognition bridge,
// classifies finalized utterances into navigation commands or dictation,
// extracts the patient MRN and note template, persists session state, and
// exposes Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/medvoice/scribectl/internal/command"
	"github.com/medvoice/scribectl/internal/config"
	"github.com/medvoice/scribectl/internal/controller"
	"github.com/medvoice/scribectl/internal/extract"
	"github.com/medvoice/scribectl/internal/health"
	"github.com/medvoice/scribectl/internal/observe"
	"github.com/medvoice/scribectl/internal/session"
	"github.com/medvoice/scribectl/pkg/recognizer"
	"github.com/medvoice/scribectl/pkg/recognizer/fallback"
	"github.com/medvoice/scribectl/pkg/recognizer/remote"
	"github.com/medvoice/scribectl/pkg/store"
	memorystore "github.com/medvoice/scribectl/pkg/store/memory"
	postgresstore "github.com/medvoice/scribectl/pkg/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scribectl: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scribectl: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scribectl starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to init metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown failed", "err", err)
		}
	}()

	// ── Storage backend ───────────────────────────────────────────────────────
	kv, closeKV, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to build storage backend", "err", err)
		return 1
	}
	defer closeKV()

	// ── Recognizer provider ───────────────────────────────────────────────────
	provider, err := buildRecognizer(cfg.Recognizer)
	if err != nil {
		slog.Error("failed to build recognizer provider", "err", err)
		return 1
	}

	// ── Controller ────────────────────────────────────────────────────────────
	ctrl := buildController(cfg, provider, kv)
	defer ctrl.Destroy()

	// ── Config watcher: runtime template updates ──────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
		ctrl.SetTemplates(next.Detection.Templates)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	if err := ctrl.Start(ctx); err != nil {
		slog.Error("failed to start listening", "err", err)
		return 1
	}

	// ── Serve /metrics until signalled ────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		probe := health.KVProbe("storage", func(ctx context.Context) error {
			if err := kv.Set(ctx, "scribe.healthcheck", "ok"); err != nil {
				return err
			}
			return kv.Delete(ctx, "scribe.healthcheck")
		})
		health.New(ctrl.Listening, probe).Register(mux)
		srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}

		g.Go(func() error {
			slog.Info("metrics server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("scribectl exited with error", "err", err)
		return 1
	}

	slog.Info("scribectl stopped")
	return 0
}

// buildStore constructs the configured store.KV backend and a release func.
func buildStore(ctx context.Context, cfg config.StorageConfig) (store.KV, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return memorystore.New(), func() {}, nil
	case "postgres":
		kv, err := postgresstore.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// buildRecognizer constructs the configured recognizer provider. An empty
// provider name yields nil, which the controller surfaces as the
// unavailable-capability error on Start. When fallback URLs are configured
// the remote backends are wrapped in a circuit-breaking failover chain.
func buildRecognizer(cfg config.RecognizerConfig) (recognizer.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "remote":
		var opts []remote.Option
		if cfg.Language != "" {
			opts = append(opts, remote.WithLanguage(cfg.Language))
		}
		if cfg.Token != "" {
			opts = append(opts, remote.WithToken(cfg.Token))
		}

		primary, err := remote.New(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		if len(cfg.FallbackURLs) == 0 {
			return primary, nil
		}

		chain := fallback.New(cfg.URL, primary)
		for _, u := range cfg.FallbackURLs {
			backend, err := remote.New(u, opts...)
			if err != nil {
				return nil, err
			}
			chain.Add(u, backend)
		}
		return chain, nil
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", cfg.Provider)
	}
}

// buildController assembles the controller with callbacks that log every
// outbound notification; a real host UI would drive widgets from these.
func buildController(cfg *config.Config, provider recognizer.Provider, kv store.KV) *controller.Controller {
	var mrnOpts []extract.MRNOption
	if cfg.Detection.MRNDigitPrefix != "" {
		mrnOpts = append(mrnOpts, extract.WithDigitPrefix(cfg.Detection.MRNDigitPrefix))
	}
	var tmplOpts []extract.TemplateOption
	if cfg.Detection.FuzzyThreshold > 0 {
		tmplOpts = append(tmplOpts, extract.WithFuzzyThreshold(cfg.Detection.FuzzyThreshold))
	}
	if cfg.Detection.WordSimilarity > 0 {
		tmplOpts = append(tmplOpts, extract.WithWordSimilarity(cfg.Detection.WordSimilarity))
	}
	detector := extract.NewDetector(
		extract.NewMRNExtractor(mrnOpts...),
		extract.NewTemplateMatcher(tmplOpts...),
	)

	callbacks := controller.Callbacks{
		OnCommand: func(action command.Action, rawText string) {
			slog.Info("command", "action", action, "text", rawText)
		},
		OnTranscript: func(text string, isFinal bool) {
			slog.Info("transcript", "final", isFinal, "text", text)
		},
		OnListenStateChange: func(listening bool) {
			slog.Info("listen state", "listening", listening)
		},
		OnError: func(code, message string) {
			slog.Warn("recognizer error", "code", code, "message", message)
		},
		OnDetection: func(det extract.Detection) {
			slog.Info("detection", "mrn", det.MRN, "template", det.Template)
		},
	}

	opts := []controller.Option{
		controller.WithDetector(detector),
		controller.WithTemplates(cfg.Detection.Templates),
	}
	if cfg.Recognizer.Language != "" {
		opts = append(opts, controller.WithLanguage(cfg.Recognizer.Language))
	}
	if cfg.Recognizer.InterimThrottleMS > 0 {
		opts = append(opts, controller.WithInterimThrottle(
			time.Duration(cfg.Recognizer.InterimThrottleMS)*time.Millisecond))
	}

	return controller.New(provider, session.New(kv), callbacks, opts...)
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
