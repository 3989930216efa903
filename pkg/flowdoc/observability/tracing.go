package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager opens the spans around command transitions and saves.
// Use NewSpanManager for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartCommandSpan starts a span named flowdoc.command.<command>.
	StartCommandSpan(ctx context.Context, command, transition string) (context.Context, trace.Span)

	// StartSaveSpan starts a flowdoc.save span.
	StartSaveSpan(ctx context.Context, docID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, recording err when non-nil.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// TraceOption configures NewSpanManager.
type TraceOption func(*spans)

// WithTracerProvider takes the tracer from tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(s *spans) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

type spans struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager for the global OTel tracer provider
// unless WithTracerProvider says otherwise. The tracer is resolved once,
// so set the global provider before calling.
func NewSpanManager(opts ...TraceOption) SpanManager {
	s := &spans{tracer: otel.Tracer(instrumentationName)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *spans) StartCommandSpan(ctx context.Context, command, transition string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "flowdoc.command."+command,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("command.name", command),
			attribute.String("command.transition", transition),
		),
	)
}

func (s *spans) StartSaveSpan(ctx context.Context, docID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "flowdoc.save",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("doc.id", docID)),
	)
}

func (*spans) EndSpanWithError(span trace.Span, err error) { EndSpanWithError(span, err) }

func (*spans) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError sets the span status from err and ends it. A nil span
// is ignored.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent records name on the span carried by ctx, if it is recording.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
