// Package observe provides application-wide observability primitives for
// hearken: OpenTelemetry metrics, distributed tracing, and the HTTP
// middleware that instruments the /metrics and health endpoints.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all hearken metrics.
const meterName = "github.com/MrWong99/hearken"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the OTel instruments synchronise
// internally.
type Metrics struct {
	// --- Pipeline ---

	// ProcessDuration tracks the time spent in one Pipeline.Process call. Use
	// with attribute:
	//   attribute.String("mode", ...)
	ProcessDuration metric.Float64Histogram

	// FramesProcessed counts frames handed to an engine. Use with attribute:
	//   attribute.String("mode", ...)
	FramesProcessed metric.Int64Counter

	// WakeDetections counts wake-word detections.
	WakeDetections metric.Int64Counter

	// Inferences counts finalized intent inferences. Use with attributes:
	//   attribute.String("understood", ...), attribute.String("intent", ...)
	Inferences metric.Int64Counter

	// ProcessErrors counts engine failures during Process. Use with attribute:
	//   attribute.String("engine", ...)
	ProcessErrors metric.Int64Counter

	// --- Capture ---

	// CapturedSamples counts samples delivered by capture devices. Use with
	// attribute:
	//   attribute.String("backend", ...)
	CapturedSamples metric.Int64Counter

	// DroppedSamples counts samples abandoned at the end of a capture
	// session because they did not fill a whole frame.
	DroppedSamples metric.Int64Counter

	// QueueDepth records the number of buffered samples after each drain.
	QueueDepth metric.Int64Histogram

	// ActiveCaptures tracks the number of running capture sessions.
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks the time spent answering scrapes and probes,
	// labelled by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// processBuckets defines histogram bucket boundaries (in seconds) for a
// single frame passing through an engine. A 512-sample frame at 16 kHz
// spans 32 ms, so anything above that means the pipeline is falling behind.
var processBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.032, 0.05, 0.1,
}

// queueBuckets defines histogram bucket boundaries (in samples) for the
// capture queue depth.
var queueBuckets = []float64{
	0, 256, 512, 1024, 2048, 4096, 8192, 16384, 65536,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ProcessDuration, err = m.Float64Histogram("hearken.pipeline.process.duration",
		metric.WithDescription("Latency of a single frame passing through the pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(processBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64Histogram("hearken.capture.queue.depth",
		metric.WithDescription("Buffered capture samples remaining after a drain."),
		metric.WithUnit("{sample}"),
		metric.WithExplicitBucketBoundaries(queueBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("hearken.pipeline.frames",
		metric.WithDescription("Total frames processed by pipeline mode."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("hearken.pipeline.wake_detections",
		metric.WithDescription("Total wake-word detections."),
	); err != nil {
		return nil, err
	}
	if met.Inferences, err = m.Int64Counter("hearken.pipeline.inferences",
		metric.WithDescription("Total finalized inferences by understood flag and intent."),
	); err != nil {
		return nil, err
	}
	if met.CapturedSamples, err = m.Int64Counter("hearken.capture.samples",
		metric.WithDescription("Total samples delivered by capture devices by backend."),
		metric.WithUnit("{sample}"),
	); err != nil {
		return nil, err
	}
	if met.DroppedSamples, err = m.Int64Counter("hearken.capture.dropped_samples",
		metric.WithDescription("Total trailing samples abandoned at the end of capture sessions."),
		metric.WithUnit("{sample}"),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProcessErrors, err = m.Int64Counter("hearken.pipeline.errors",
		metric.WithDescription("Total engine failures by engine."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("hearken.capture.active",
		metric.WithDescription("Number of running capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hearken.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrame records one processed frame and its latency for the given mode.
func (m *Metrics) RecordFrame(ctx context.Context, mode string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.FramesProcessed.Add(ctx, 1, attrs)
	m.ProcessDuration.Record(ctx, seconds, attrs)
}

// RecordInference is a convenience method that records a finalized
// inference with the standard attribute set.
func (m *Metrics) RecordInference(ctx context.Context, understood bool, intent string) {
	m.Inferences.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("understood", strconv.FormatBool(understood)),
			attribute.String("intent", intent),
		),
	)
}

// RecordProcessError is a convenience method that records an engine failure.
func (m *Metrics) RecordProcessError(ctx context.Context, engine string) {
	m.ProcessErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordCapture is a convenience method that records samples delivered by a
// capture backend.
func (m *Metrics) RecordCapture(ctx context.Context, backend string, samples int) {
	m.CapturedSamples.Add(ctx, int64(samples),
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}
