package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/randalmurphal/flowdoc"

// MetricsRecorder records flowdoc metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCommand records one command transition (execute, undo, redo).
	RecordCommand(ctx context.Context, command, transition string, duration time.Duration, err error)

	// RecordDispatch records a reducer dispatch and whether it changed the tree.
	RecordDispatch(ctx context.Context, action string, changed bool)

	// RecordCollabMessage records a collaboration message. direction is "in" or "out".
	RecordCollabMessage(ctx context.Context, direction, topic string)

	// RecordDocumentSize records the serialized size of a saved document.
	RecordDocumentSize(ctx context.Context, docID string, sizeBytes int64)
}

type otelMetrics struct {
	commandExecutions metric.Int64Counter
	commandLatency    metric.Float64Histogram
	commandErrors     metric.Int64Counter
	dispatches        metric.Int64Counter
	collabMessages    metric.Int64Counter
	documentSize      metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &otelMetrics{}
	var err error

	if m.commandExecutions, err = meter.Int64Counter("flowdoc.command.executions",
		metric.WithDescription("Number of command transitions"),
	); err != nil {
		return nil, err
	}
	if m.commandLatency, err = meter.Float64Histogram("flowdoc.command.latency_ms",
		metric.WithDescription("Command transition latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.commandErrors, err = meter.Int64Counter("flowdoc.command.errors",
		metric.WithDescription("Number of failed command transitions"),
	); err != nil {
		return nil, err
	}
	if m.dispatches, err = meter.Int64Counter("flowdoc.reducer.dispatches",
		metric.WithDescription("Number of reducer dispatches"),
	); err != nil {
		return nil, err
	}
	if m.collabMessages, err = meter.Int64Counter("flowdoc.collab.messages",
		metric.WithDescription("Collaboration messages sent and received"),
	); err != nil {
		return nil, err
	}
	if m.documentSize, err = meter.Int64Histogram("flowdoc.document.size_bytes",
		metric.WithDescription("Serialized document size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder when instruments cannot be created.
// Set the provider first with otel.SetMeterProvider.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordCommand(ctx context.Context, command, transition string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("transition", transition),
	)
	m.commandExecutions.Add(ctx, 1, attrs)
	m.commandLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.commandErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, action string, changed bool) {
	m.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("changed", changed),
	))
}

func (m *otelMetrics) RecordCollabMessage(ctx context.Context, direction, topic string) {
	m.collabMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("topic", topic),
	))
}

func (m *otelMetrics) RecordDocumentSize(ctx context.Context, docID string, sizeBytes int64) {
	m.documentSize.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("doc_id", docID),
	))
}
