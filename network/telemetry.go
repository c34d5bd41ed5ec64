package network

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/caltechlibrary/commonpy/logger"
)

const (
	instrumentationName = "github.com/caltechlibrary/commonpy/network"

	metricAttempts = "network.client.attempts"
	metricPauses   = "network.client.pauses"
	metricDuration = "network.client.duration"

	attrMethod     = "http.request.method"
	attrURL        = "url.full"
	attrStatusCode = "http.response.status_code"
	attrErrorType  = "error.type"
	attrReason     = "network.pause.reason"
	attrAttempts   = "network.attempts"
)

// Pause reasons reported on the pauses counter.
const (
	pauseBrief      = "brief"
	pauseEscalation = "escalation"
	pauseRateLimit  = "rate_limit"
	pausePoll       = "poll"
)

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

type instruments struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	pauses   metric.Int64Counter
	duration metric.Float64Histogram
}

// newInstruments creates the client's tracer and meters. Instrument creation
// failures are logged and replaced by no-op instruments.
func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, log logger.Logger) *instruments {
	meter := mp.Meter(instrumentationName)
	noop := metricnoop.NewMeterProvider().Meter(instrumentationName)

	attempts, err := meter.Int64Counter(metricAttempts,
		metric.WithDescription("HTTP exchanges performed, including retries"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		log.Warn().Err(err).Str("metric", metricAttempts).Msg("metric initialization failed")
		attempts, _ = noop.Int64Counter(metricAttempts)
	}

	pauses, err := meter.Int64Counter(metricPauses,
		metric.WithDescription("Pauses taken between attempts"),
		metric.WithUnit("{pause}"))
	if err != nil {
		log.Warn().Err(err).Str("metric", metricPauses).Msg("metric initialization failed")
		pauses, _ = noop.Int64Counter(metricPauses)
	}

	duration, err := meter.Float64Histogram(metricDuration,
		metric.WithDescription("Duration of top-level network calls including retries and pauses"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	if err != nil {
		log.Warn().Err(err).Str("metric", metricDuration).Msg("metric initialization failed")
		duration, _ = noop.Float64Histogram(metricDuration)
	}

	return &instruments{
		tracer:   tp.Tracer(instrumentationName),
		attempts: attempts,
		pauses:   pauses,
		duration: duration,
	}
}

func (in *instruments) startSpan(ctx context.Context, name, method, rawURL string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrURL, rawURL),
		))
}

// finish closes a top-level call: span status, duration histogram.
func (in *instruments) finish(ctx context.Context, span trace.Span, method string, start time.Time, resp *Response, err error) {
	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	if resp != nil {
		span.SetAttributes(
			attribute.Int(attrStatusCode, resp.StatusCode),
			attribute.Int(attrAttempts, resp.Stats.Attempts),
		)
		attrs = append(attrs, attribute.Int(attrStatusCode, resp.StatusCode))
	}
	if err != nil {
		errType := errorType(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrErrorType, errType))
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}
	in.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	span.End()
}

func (in *instruments) recordAttempt(ctx context.Context, method string, statusCode int, err error) {
	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyFailure(err).String()))
	} else {
		attrs = append(attrs, attribute.Int(attrStatusCode, statusCode))
	}
	in.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (in *instruments) recordPause(ctx context.Context, reason string) {
	in.pauses.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

func errorType(err error) string {
	if kind := KindOf(err); kind != KindNone {
		return string(kind)
	}
	return classifyFailure(err).String()
}
