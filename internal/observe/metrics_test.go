package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

// sumFor returns the value of the data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordFrame(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFrame(ctx, "scanning", 0.001)
	m.RecordFrame(ctx, "scanning", 0.002)
	m.RecordFrame(ctx, "accumulating", 0.004)

	rm := collect(t, reader)

	if got := sumFor(t, rm, "hearken.pipeline.frames", "mode", "scanning"); got != 2 {
		t.Errorf("scanning frames = %d, want 2", got)
	}
	if got := sumFor(t, rm, "hearken.pipeline.frames", "mode", "accumulating"); got != 1 {
		t.Errorf("accumulating frames = %d, want 1", got)
	}

	met := findMetric(rm, "hearken.pipeline.process.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration metric is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("histogram sample count = %d, want 3", total)
	}
}

func TestRecordInference(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInference(ctx, true, "orderBeverage")
	m.RecordInference(ctx, true, "orderBeverage")
	m.RecordInference(ctx, false, "")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hearken.pipeline.inferences", "intent", "orderBeverage"); got != 2 {
		t.Errorf("orderBeverage inferences = %d, want 2", got)
	}
	if got := sumFor(t, rm, "hearken.pipeline.inferences", "understood", "false"); got != 1 {
		t.Errorf("not understood inferences = %d, want 1", got)
	}
}

func TestRecordProcessError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProcessError(ctx, "wake_word")
	m.RecordProcessError(ctx, "intent")
	m.RecordProcessError(ctx, "intent")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hearken.pipeline.errors", "engine", "intent"); got != 2 {
		t.Errorf("intent errors = %d, want 2", got)
	}
}

func TestCaptureMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCapture(ctx, "malgo", 160)
	m.RecordCapture(ctx, "malgo", 352)
	m.DroppedSamples.Add(ctx, 17)
	m.ActiveCaptures.Add(ctx, 1)
	m.QueueDepth.Record(ctx, 100)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "hearken.capture.samples", "backend", "malgo"); got != 512 {
		t.Errorf("captured samples = %d, want 512", got)
	}

	for _, tc := range []struct {
		name string
		want int64
	}{
		{"hearken.capture.dropped_samples", 17},
		{"hearken.capture.active", 1},
	} {
		met := findMetric(rm, tc.name)
		if met == nil {
			t.Fatalf("metric %q not found", tc.name)
		}
		sum, ok := met.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) == 0 {
			t.Fatalf("metric %q has no sum data points", tc.name)
		}
		if got := sum.DataPoints[0].Value; got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}

	if findMetric(rm, "hearken.capture.queue.depth") == nil {
		t.Error("queue depth metric not found")
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

// histogramPoints returns the data points of a float64 histogram metric.
func histogramPoints(t *testing.T, met *metricdata.Metrics) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is not a histogram", met.Name)
	}
	return hist.DataPoints
}
