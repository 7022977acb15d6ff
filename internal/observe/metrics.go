// Package observe provides observability primitives for scribectl:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-
// level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribectl metrics.
const meterName = "github.com/medvoice/scribectl"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// IngestDuration tracks per-callback result-set ingest latency.
	IngestDuration metric.Float64Histogram

	// FinalUtterances counts finalized utterance chunks.
	FinalUtterances metric.Int64Counter

	// Commands counts classified commands. Use with attribute:
	//   attribute.String("action", ...)
	Commands metric.Int64Counter

	// InterimsDropped counts interim hypotheses dropped by throttling.
	InterimsDropped metric.Int64Counter

	// RecognizerErrors counts recognizer error notifications. Use with
	// attribute: attribute.String("code", ...)
	RecognizerErrors metric.Int64Counter

	// Restarts counts automatic recognizer restarts.
	Restarts metric.Int64Counter

	// Detections counts combined MRN+template detection events.
	Detections metric.Int64Counter

	// ActiveSessions tracks the number of live recognition sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// ingestBuckets defines histogram bucket boundaries (in seconds) sized for
// in-process text classification work.
var ingestBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.IngestDuration, err = m.Float64Histogram("scribectl.ingest.duration",
		metric.WithDescription("Latency of one recognizer result-set ingest."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ingestBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FinalUtterances, err = m.Int64Counter("scribectl.utterances.final",
		metric.WithDescription("Total finalized utterance chunks."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("scribectl.commands",
		metric.WithDescription("Total classified voice commands by action."),
	); err != nil {
		return nil, err
	}
	if met.InterimsDropped, err = m.Int64Counter("scribectl.interims.dropped",
		metric.WithDescription("Interim hypotheses dropped by throttling."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("scribectl.recognizer.errors",
		metric.WithDescription("Recognizer error notifications by code."),
	); err != nil {
		return nil, err
	}
	if met.Restarts, err = m.Int64Counter("scribectl.recognizer.restarts",
		metric.WithDescription("Automatic recognizer session restarts."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("scribectl.detections",
		metric.WithDescription("Combined MRN and template detection events."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("scribectl.sessions.active",
		metric.WithDescription("Live recognition sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance built on the
// global OTel meter provider. Instruments are created on first use, after
// [InitProvider] has installed the real provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// The OTel no-op provider never fails instrument creation, so
			// this only happens with a misconfigured custom provider.
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordIngest records one result-set ingest latency in seconds.
// Nil-safe on a zero Metrics, like every recording helper below: the
// DefaultMetrics fallback is a zero struct, so no caller may touch the
// instrument fields directly.
func (m *Metrics) RecordIngest(ctx context.Context, seconds float64) {
	if m == nil || m.IngestDuration == nil {
		return
	}
	m.IngestDuration.Record(ctx, seconds)
}

// AddFinalUtterance counts one finalized utterance chunk.
func (m *Metrics) AddFinalUtterance(ctx context.Context) {
	if m == nil || m.FinalUtterances == nil {
		return
	}
	m.FinalUtterances.Add(ctx, 1)
}

// AddInterimDropped counts one throttled interim hypothesis.
func (m *Metrics) AddInterimDropped(ctx context.Context) {
	if m == nil || m.InterimsDropped == nil {
		return
	}
	m.InterimsDropped.Add(ctx, 1)
}

// AddRestart counts one automatic recognizer restart.
func (m *Metrics) AddRestart(ctx context.Context) {
	if m == nil || m.Restarts == nil {
		return
	}
	m.Restarts.Add(ctx, 1)
}

// AddDetection counts one combined detection event.
func (m *Metrics) AddDetection(ctx context.Context) {
	if m == nil || m.Detections == nil {
		return
	}
	m.Detections.Add(ctx, 1)
}

// AddActiveSessions moves the live-session gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	if m == nil || m.ActiveSessions == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}

// RecordCommand increments the command counter with the action attribute.
// Nil-safe on a zero Metrics.
func (m *Metrics) RecordCommand(ctx context.Context, action string) {
	if m == nil || m.Commands == nil {
		return
	}
	m.Commands.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordRecognizerError increments the error counter with the code attribute.
// Nil-safe on a zero Metrics.
func (m *Metrics) RecordRecognizerError(ctx context.Context, code string) {
	if m == nil || m.RecognizerErrors == nil {
		return
	}
	m.RecognizerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
