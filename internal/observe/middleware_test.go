package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates both metrics and tracing infrastructure for middleware tests.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

func TestMiddleware_SpanAndCorrelationID(t *testing.T) {
	m, _, exp := testSetup(t)

	var capturedCID string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCID = CorrelationID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	if len(capturedCID) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", capturedCID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != capturedCID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, capturedCID)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == http.StatusServiceUnavailable {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code=503")
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m, reader, _ := testSetup(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))
	}

	rm := collect(t, reader)
	met := findMetric(rm, "hearken.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	var found bool
	for _, dp := range histogramPoints(t, met) {
		if v, ok := dp.Attributes.Value("route"); ok && v.AsString() == RouteMetrics {
			found = true
			if dp.Count != 3 {
				t.Errorf("count = %d, want 3", dp.Count)
			}
		}
	}
	if !found {
		t.Error("no data point for route=/metrics")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := testSetup(t)

	var capturedCID string
	handler := Middleware(m)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		capturedCID = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if capturedCID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("correlation ID = %q, want incoming trace ID", capturedCID)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/metrics", RouteMetrics},
		{"/healthz", RouteHealthz},
		{"/readyz", RouteReadyz},
		{"/", RouteUnmatched},
		{"/readyz/extra", RouteUnmatched},
		{"/favicon.ico", RouteUnmatched},
	}
	for _, tt := range tests {
		if got := Route(tt.path); got != tt.want {
			t.Errorf("Route(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddleware_CollapsesUnknownPaths(t *testing.T) {
	m, reader, exp := testSetup(t)

	handler := Middleware(m)(http.NotFoundHandler())
	for _, path := range []string{"/wp-login.php", "/admin", "/readyz/../x"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	names := map[string]int{}
	for _, s := range exp.GetSpans() {
		names[s.Name]++
	}
	if names["GET unmatched"] != 3 || names["GET /healthz"] != 1 || len(names) != 2 {
		t.Errorf("span names = %v, want 3 x GET unmatched and 1 x GET /healthz", names)
	}

	met := findMetric(collect(t, reader), "hearken.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	routes := map[string]uint64{}
	for _, dp := range histogramPoints(t, met) {
		v, _ := dp.Attributes.Value("route")
		routes[v.AsString()] += dp.Count
		if _, ok := dp.Attributes.Value("path"); ok {
			t.Error("raw path recorded as a metric attribute")
		}
	}
	if routes[RouteUnmatched] != 3 || routes[RouteHealthz] != 1 || len(routes) != 2 {
		t.Errorf("routes = %v", routes)
	}
}
