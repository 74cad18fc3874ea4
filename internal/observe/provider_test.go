package observe

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=test")

	res, err := newResource(t.Context(), ProviderConfig{ServiceVersion: "1.2.3", GuildID: "guild-1"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	set := res.Set()
	want := map[string]string{
		string(semconv.ServiceNameKey):    "dictee",
		string(semconv.ServiceVersionKey): "1.2.3",
		string(GuildIDKey):                "guild-1",
		"deployment.environment":          "test",
	}
	for k, v := range want {
		got, ok := set.Value(attribute.Key(k))
		if !ok || got.AsString() != v {
			t.Errorf("%s = %q (present %v), want %q", k, got.AsString(), ok, v)
		}
	}

	res, err = newResource(t.Context(), ProviderConfig{ServiceName: "dictee-staging"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if _, ok := res.Set().Value(GuildIDKey); ok {
		t.Error("guild attribute set without a guild")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want it to contain %q", tt.ratio, got, tt.want)
		}
	}
	if got := sampler(0.25).Description(); !strings.HasPrefix(got, "ParentBased") {
		t.Errorf("sampler(0.25) = %q; rounds must follow their session", got)
	}
}

// TestInitProvider replaces the global providers, so it must not run in
// parallel.
func TestInitProvider_ExportsSessionSpans(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitProvider(t.Context(), ProviderConfig{GuildID: "guild-1", TraceExporter: exp})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	_, span := StartSpan(t.Context(), "engine.session")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "engine.session" {
		t.Fatalf("exported spans = %+v", spans)
	}
	if v, ok := spans[0].Resource.Set().Value(GuildIDKey); !ok || v.AsString() != "guild-1" {
		t.Errorf("span resource lacks the guild: %v", spans[0].Resource)
	}
}
