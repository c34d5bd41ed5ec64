package network

import (
	"context"
	nethttp "net/http"
	"net/url"
	"time"
)

// Request holds the method-specific parameters of a call. It is never
// modified by the client, so one value can be reused across calls.
type Request struct {
	Headers map[string]string
	Query   url.Values
	Body    []byte
	Auth    *BasicAuth
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Response is a fully received HTTP response.
type Response struct {
	StatusCode int
	Reason     string
	Headers    nethttp.Header
	Body       []byte
	Stats      Stats
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Stats describes the work done to obtain a response.
type Stats struct {
	ElapsedTime time.Duration
	// Attempts counts HTTP exchanges, including silent retries.
	Attempts int
}

// Sleeper performs the pauses between attempts. It must return early with
// an error when the wait is cut short.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Prober tells whether the network at large is reachable. It is consulted
// only to tell a NetworkFailure from a ServiceFailure after transport errors.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

// Reachable implements Prober.
func (f ProberFunc) Reachable(ctx context.Context) bool {
	return f(ctx)
}

// NetOption adjusts how Net and Do classify responses.
type NetOption func(*netOptions)

type netOptions struct {
	polling    bool
	handleRate bool
}

// WithPolling treats 404 and 410 as ordinary responses, for callers that
// poll a URL which does not exist until the server has something ready.
func WithPolling() NetOption {
	return func(o *netOptions) { o.polling = true }
}

// WithoutRateHandling returns RateLimitExceeded on the first 429 instead of
// pausing and trying again.
func WithoutRateHandling() NetOption {
	return func(o *netOptions) { o.handleRate = false }
}

// Config holds the client settings. Zero timeouts and redirect limits select
// the defaults; pauses and retry bounds select them only when negative.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// HTTP2 lets the default transport negotiate HTTP/2.
	HTTP2 bool
	// InsecureSkipVerify disables TLS certificate verification on the default transport.
	InsecureSkipVerify bool
	MaxRedirects       int

	// MaxConsecutiveFails is the failure streak that triggers an escalation pause.
	MaxConsecutiveFails int
	// MaxEscalations bounds the escalation pauses before giving up.
	MaxEscalations int
	// MaxRecursiveCalls bounds 429 and 202 retries.
	MaxRecursiveCalls int

	BriefPause      time.Duration
	EscalationPause time.Duration
	RateLimitPause  time.Duration
	PollPause       time.Duration

	// RequestsPerSecond enables a client-side limiter waited on before every attempt.
	RequestsPerSecond float64
	Burst             int

	// RequestIDHeader names the correlation header (default X-Request-ID).
	RequestIDHeader string
}
