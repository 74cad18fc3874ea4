package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr returns the int64 sum data point whose attribute key has value,
// or the first data point when key is empty.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestSessionLifecycleMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSessionStarted(ctx, "A1")
	m.RecordSessionStarted(ctx, "B2")
	m.RecordSessionEnded(ctx, "win", 17)
	m.RecordSessionEnded(ctx, "stopped", 0)
	m.RecordSessionStarted(ctx, "A1")

	rm := collect(t, reader)

	if got := sumByAttr(t, rm, "dictee.sessions.started", "difficulty", "A1"); got != 2 {
		t.Errorf("sessions started A1 = %d, want 2", got)
	}
	if got := sumByAttr(t, rm, "dictee.sessions.ended", "reason", "win"); got != 1 {
		t.Errorf("sessions ended win = %d, want 1", got)
	}
	if got := sumByAttr(t, rm, "dictee.active_sessions", "", ""); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
	if got := sumByAttr(t, rm, "dictee.rewards.paid", "", ""); got != 17 {
		t.Errorf("rewards paid = %d, want 17", got)
	}
}

func TestRecordRound(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRound(ctx, "correct", 100)
	m.RecordRound(ctx, "wrong", 42)
	m.RecordRound(ctx, "timeout", 0)

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "dictee.rounds", "result", "timeout"); got != 1 {
		t.Errorf("timeout rounds = %d, want 1", got)
	}

	met := findMetric(rm, "dictee.answer.accuracy")
	if met == nil {
		t.Fatal("accuracy histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("accuracy metric is not an int64 histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("accuracy samples = %d, want 2 (timeouts are not scored)", got)
	}
}

func TestRecordStoreCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordStoreCall(context.Background(), "credit_profile", 0.004)

	rm := collect(t, reader)
	met := findMetric(rm, "dictee.store.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
