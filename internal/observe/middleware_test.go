package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// opsMux mimics the operations server: a liveness route, a failing readiness
// route and the metrics route.
func opsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# EOF\n"))
	})
	return mux
}

func durationCount(t *testing.T, reader *sdkmetric.ManualReader, path string) uint64 {
	t.Helper()
	met := findMetric(collect(t, reader), "dictee.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("request duration is %T, want a float64 histogram", met.Data)
	}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value("path"); ok && v.AsString() == path {
			return dp.Count
		}
	}
	return 0
}

func TestMiddleware_OpsRoutes(t *testing.T) {
	exp := useTracer(t)
	m, reader := newTestMetrics(t)
	handler := Middleware(m)(opsMux())

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			exp.Reset()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans, want 1", len(spans))
			}
			span := spans[0]
			if want := "HTTP GET " + tt.path; span.Name != want {
				t.Errorf("span name = %q, want %q", span.Name, want)
			}
			var status int64
			for _, kv := range span.Attributes {
				if kv.Key == "http.response.status_code" {
					status = kv.Value.AsInt64()
				}
			}
			if status != int64(tt.wantStatus) {
				t.Errorf("span status attribute = %d, want %d", status, tt.wantStatus)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != span.SpanContext.TraceID().String() {
				t.Errorf("X-Correlation-ID = %q, want the span's trace ID", got)
			}
			if n := durationCount(t, reader, tt.path); n != 1 {
				t.Errorf("duration samples for %s = %d, want 1", tt.path, n)
			}
		})
	}
}

func TestMiddleware_ContinuesCallerTrace(t *testing.T) {
	useTracer(t)
	m, _ := newTestMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(context.Background())
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("handler saw trace %q, want the caller's %q", seen, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
	if got := rec.Header().Get("traceparent"); got == "" {
		t.Error("response carries no traceparent")
	}
}
