// Package trace carries request identifiers through a context and stamps them
// onto outgoing HTTP requests.
package trace

import (
	"context"
	nethttp "net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the header used for request correlation.
	HeaderXRequestID = "X-Request-ID"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from ctx or a fresh UUID.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// Inject stamps req with a request ID under header (HeaderXRequestID when
// empty) unless the caller already set one, and propagates the active span
// as W3C traceparent/tracestate headers.
func Inject(ctx context.Context, req *nethttp.Request, header string) {
	if header == "" {
		header = HeaderXRequestID
	}
	if req.Header.Get(header) == "" {
		req.Header.Set(header, EnsureRequestID(ctx))
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
}
