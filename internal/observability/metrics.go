package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests, processes and probes take
// - Traffic: Request, process and probe throughput
// - Errors: Rate of failures
// - Saturation: Concurrent processes and sweeps
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Process metrics (Latency, Traffic, Errors, Saturation)
	ProcessDuration     metric.Float64Histogram
	ProcessesTotal      metric.Int64Counter
	ProcessFailedTotal  metric.Int64Counter
	ProcessStoppedTotal metric.Int64Counter
	ProcessesActive     metric.Int64UpDownCounter

	// Probe metrics (Latency, Traffic, Errors, Saturation)
	ProbeDuration        metric.Float64Histogram
	ProbesTotal          metric.Int64Counter
	ProbesDiscarded      metric.Int64Counter
	SweepDuration        metric.Float64Histogram
	SweepsStarted        metric.Int64Counter
	SweepsCancelled      metric.Int64Counter
	SweepsActive         metric.Int64UpDownCounter
	SweepTargetsReceived metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter
// on the default registry.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	return newMetrics(ctx, promclient.DefaultRegisterer, promhttp.Handler())
}

// NewMetricsWithRegistry is like NewMetrics but exposes only reg.
func NewMetricsWithRegistry(ctx context.Context, reg *promclient.Registry) (*Metrics, http.Handler, error) {
	return newMetrics(ctx, reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func newMetrics(_ context.Context, reg promclient.Registerer, handler http.Handler) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("opsconsole")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Process metrics
	m.ProcessDuration, err = meter.Float64Histogram(
		"process_run_duration_seconds",
		metric.WithDescription("Supervised process run time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 1, 5, 10, 30, 60, 300, 900, 1800, 3600, 14400),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProcessesTotal, err = meter.Int64Counter(
		"processes_spawned_total",
		metric.WithDescription("Total number of processes spawned"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProcessFailedTotal, err = meter.Int64Counter(
		"processes_failed_total",
		metric.WithDescription("Total number of processes that exited non-zero"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProcessStoppedTotal, err = meter.Int64Counter(
		"processes_stopped_total",
		metric.WithDescription("Total number of processes stopped on request"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProcessesActive, err = meter.Int64UpDownCounter(
		"processes_active",
		metric.WithDescription("Number of currently running processes (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Probe metrics
	m.ProbeDuration, err = meter.Float64Histogram(
		"probe_duration_seconds",
		metric.WithDescription("Relay probe latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProbesTotal, err = meter.Int64Counter(
		"probes_total",
		metric.WithDescription("Total number of relay probes by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProbesDiscarded, err = meter.Int64Counter(
		"probes_discarded_total",
		metric.WithDescription("Probe results discarded because their sweep was cancelled"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepDuration, err = meter.Float64Histogram(
		"sweep_duration_seconds",
		metric.WithDescription("Sweep wall time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepsStarted, err = meter.Int64Counter(
		"sweeps_started_total",
		metric.WithDescription("Total number of sweeps started"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepsCancelled, err = meter.Int64Counter(
		"sweeps_cancelled_total",
		metric.WithDescription("Total number of sweeps cancelled before completion"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepsActive, err = meter.Int64UpDownCounter(
		"sweeps_active",
		metric.WithDescription("Number of sweeps currently running (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SweepTargetsReceived, err = meter.Int64Counter(
		"sweep_targets_total",
		metric.WithDescription("Total number of relay targets submitted to sweeps"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, handler, nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobSpawned records a new process being started.
func (m *Metrics) RecordJobSpawned(ctx context.Context) {
	m.ProcessesTotal.Add(ctx, 1)
	m.ProcessesActive.Add(ctx, 1)
}

// RecordJobFinished records a process exit with its final status.
func (m *Metrics) RecordJobFinished(ctx context.Context, status string, durationSeconds float64) {
	m.ProcessDuration.Record(ctx, durationSeconds, metric.WithAttributes(processStatusAttr(status)))
	m.ProcessesActive.Add(ctx, -1)

	switch status {
	case "failed":
		m.ProcessFailedTotal.Add(ctx, 1)
	case "stopped":
		m.ProcessStoppedTotal.Add(ctx, 1)
	}
}

// RecordProbe records one completed relay probe.
func (m *Metrics) RecordProbe(ctx context.Context, reachable bool, durationSeconds float64) {
	attrs := metric.WithAttributes(outcomeAttr(reachable))
	m.ProbesTotal.Add(ctx, 1, attrs)
	m.ProbeDuration.Record(ctx, durationSeconds, attrs)
}

// RecordProbeDiscarded records a late probe result that was dropped.
func (m *Metrics) RecordProbeDiscarded(ctx context.Context) {
	m.ProbesDiscarded.Add(ctx, 1)
}

// RecordSweepStarted records a sweep start with its number of targets.
func (m *Metrics) RecordSweepStarted(ctx context.Context, targets int) {
	m.SweepsStarted.Add(ctx, 1)
	m.SweepsActive.Add(ctx, 1)
	m.SweepTargetsReceived.Add(ctx, int64(targets))
}

// RecordSweepFinished records a sweep ending, either completed or cancelled.
func (m *Metrics) RecordSweepFinished(ctx context.Context, cancelled bool, durationSeconds float64) {
	m.SweepsActive.Add(ctx, -1)
	m.SweepDuration.Record(ctx, durationSeconds, metric.WithAttributes(cancelledAttr(cancelled)))
	if cancelled {
		m.SweepsCancelled.Add(ctx, 1)
	}
}
