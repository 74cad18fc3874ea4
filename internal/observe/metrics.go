// Package observe provides the bot's observability primitives: OpenTelemetry
// metrics and tracing, a trace-aware logger, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format by [InitProvider]. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/dictee"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// SessionsStarted counts sessions bound to a player. Use with attribute:
	//   attribute.String("difficulty", ...)
	SessionsStarted metric.Int64Counter

	// SessionsEnded counts finished sessions. Use with attribute:
	//   attribute.String("reason", ...)
	SessionsEnded metric.Int64Counter

	// Rounds counts resolved rounds. Use with attribute:
	//   attribute.String("result", "correct"|"wrong"|"timeout")
	Rounds metric.Int64Counter

	// AnswerAccuracy records the accuracy (0-100) of every typed answer.
	AnswerAccuracy metric.Int64Histogram

	// RewardsPaid sums the crumbs granted to players.
	RewardsPaid metric.Int64Counter

	// ActiveSessions is 1 while a session runs.
	ActiveSessions metric.Int64UpDownCounter

	// StoreDuration tracks storage call latency. Use with attribute:
	//   attribute.String("op", ...)
	StoreDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// accuracyBuckets split answers around the usual pass marks.
var accuracyBuckets = []float64{
	10, 25, 50, 75, 80, 85, 89, 90, 95, 99, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionsStarted, err = m.Int64Counter("dictee.sessions.started",
		metric.WithDescription("Sessions bound to a player, by difficulty."),
	); err != nil {
		return nil, err
	}
	if met.SessionsEnded, err = m.Int64Counter("dictee.sessions.ended",
		metric.WithDescription("Finished sessions, by end reason."),
	); err != nil {
		return nil, err
	}
	if met.Rounds, err = m.Int64Counter("dictee.rounds",
		metric.WithDescription("Resolved rounds, by result."),
	); err != nil {
		return nil, err
	}
	if met.AnswerAccuracy, err = m.Int64Histogram("dictee.answer.accuracy",
		metric.WithDescription("Accuracy of typed answers."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewardsPaid, err = m.Int64Counter("dictee.rewards.paid",
		metric.WithDescription("Crumbs granted to players."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("dictee.active_sessions",
		metric.WithDescription("Number of running sessions."),
	); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = m.Float64Histogram("dictee.store.duration",
		metric.WithDescription("Latency of storage calls, by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("dictee.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSessionStarted counts a new session.
func (m *Metrics) RecordSessionStarted(ctx context.Context, difficulty string) {
	m.SessionsStarted.Add(ctx, 1, metric.WithAttributes(Attr("difficulty", difficulty)))
	m.ActiveSessions.Add(ctx, 1)
}

// RecordSessionEnded counts a finished session and the crumbs it paid.
func (m *Metrics) RecordSessionEnded(ctx context.Context, reason string, reward int) {
	m.SessionsEnded.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
	m.ActiveSessions.Add(ctx, -1)
	if reward > 0 {
		m.RewardsPaid.Add(ctx, int64(reward))
	}
}

// RecordRound counts a resolved round. accuracy is ignored for timeouts.
func (m *Metrics) RecordRound(ctx context.Context, result string, accuracy int) {
	m.Rounds.Add(ctx, 1, metric.WithAttributes(Attr("result", result)))
	if result != "timeout" {
		m.AnswerAccuracy.Record(ctx, int64(accuracy))
	}
}

// RecordStoreCall records the latency of a storage operation in seconds.
func (m *Metrics) RecordStoreCall(ctx context.Context, op string, seconds float64) {
	m.StoreDuration.Record(ctx, seconds, metric.WithAttributes(Attr("op", op)))
}
