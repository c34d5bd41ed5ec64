package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/caltechlibrary/commonpy/httpcode"
	"github.com/caltechlibrary/commonpy/interrupt"
	"github.com/caltechlibrary/commonpy/logger"
	reqtrace "github.com/caltechlibrary/commonpy/trace"
)

const (
	// DefaultTimeout is the default connect, read and write timeout
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRedirects is the redirect limit of the default HTTP client
	DefaultMaxRedirects = 20

	// DefaultMaxConsecutiveFails is the failure streak that triggers an escalation pause
	DefaultMaxConsecutiveFails = 3

	// DefaultMaxEscalations is the number of escalation pauses before giving up
	DefaultMaxEscalations = 5

	// DefaultMaxRecursiveCalls bounds rate-limit and polling retries
	DefaultMaxRecursiveCalls = 10

	// DefaultBriefPause is the pause after every failed attempt
	DefaultBriefPause = 500 * time.Millisecond

	// DefaultEscalationPause is multiplied by the square of the escalation number
	DefaultEscalationPause = 10 * time.Second

	// DefaultRateLimitPause is multiplied by the rate-limit retry number
	DefaultRateLimitPause = 5 * time.Second

	// DefaultPollPause is the pause between download polls on 202 Accepted
	DefaultPollPause = 2 * time.Second
)

var knownMethods = map[string]bool{
	nethttp.MethodGet:     true,
	nethttp.MethodPost:    true,
	nethttp.MethodHead:    true,
	nethttp.MethodOptions: true,
	nethttp.MethodPut:     true,
	nethttp.MethodDelete:  true,
	nethttp.MethodPatch:   true,
}

// Methods that do not take a request body.
var bodylessMethods = map[string]bool{
	nethttp.MethodGet:     true,
	nethttp.MethodHead:    true,
	nethttp.MethodOptions: true,
	nethttp.MethodDelete:  true,
}

// Statuses that are often gone on an immediate second try.
var transientStatuses = map[int]bool{
	nethttp.StatusBadRequest:         true,
	nethttp.StatusConflict:           true,
	nethttp.StatusBadGateway:         true,
	nethttp.StatusServiceUnavailable: true,
	nethttp.StatusGatewayTimeout:     true,
}

// DefaultConfig returns the settings used by NewClient.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:      DefaultTimeout,
		ReadTimeout:         DefaultTimeout,
		WriteTimeout:        DefaultTimeout,
		HTTP2:               true,
		InsecureSkipVerify:  true,
		MaxRedirects:        DefaultMaxRedirects,
		MaxConsecutiveFails: DefaultMaxConsecutiveFails,
		MaxEscalations:      DefaultMaxEscalations,
		MaxRecursiveCalls:   DefaultMaxRecursiveCalls,
		BriefPause:          DefaultBriefPause,
		EscalationPause:     DefaultEscalationPause,
		RateLimitPause:      DefaultRateLimitPause,
		PollPause:           DefaultPollPause,
		RequestIDHeader:     reqtrace.HeaderXRequestID,
	}
}

// withDefaults fills zero values. The boolean switches are taken as given.
func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = def.MaxConsecutiveFails
	}
	if cfg.MaxEscalations < 0 {
		cfg.MaxEscalations = def.MaxEscalations
	}
	if cfg.MaxRecursiveCalls < 0 {
		cfg.MaxRecursiveCalls = def.MaxRecursiveCalls
	}
	if cfg.BriefPause < 0 {
		cfg.BriefPause = def.BriefPause
	}
	if cfg.EscalationPause < 0 {
		cfg.EscalationPause = def.EscalationPause
	}
	if cfg.RateLimitPause < 0 {
		cfg.RateLimitPause = def.RateLimitPause
	}
	if cfg.PollPause < 0 {
		cfg.PollPause = def.PollPause
	}
	if cfg.RequestIDHeader == "" {
		cfg.RequestIDHeader = def.RequestIDHeader
	}
	return cfg
}

// Client executes HTTP requests with retries and outcome classification.
// A Client is safe for sequential reuse; concurrent use is only as safe as
// the underlying *http.Client.
type Client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     Config
	token      *interrupt.Token
	sleeper    Sleeper
	prober     Prober
	limiter    *rate.Limiter
	inst       *instruments
}

// NewClient creates a client with the default configuration
func NewClient(log logger.Logger) *Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config         Config
	logger         logger.Logger
	httpClient     *nethttp.Client
	transport      nethttp.RoundTripper
	token          *interrupt.Token
	sleeper        Sleeper
	prober         Prober
	limiter        *rate.Limiter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: log,
	}
}

// WithConfig replaces the whole configuration. Unset fields are filled in
// as described on Config.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithHTTPClient uses a caller-built client as is. Timeouts, TLS and
// redirect settings of the builder are ignored in that case.
func (b *Builder) WithHTTPClient(client *nethttp.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTransport sets the round tripper of the default HTTP client.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithTimeouts sets the connect, read and write timeouts
func (b *Builder) WithTimeouts(connect, read, write time.Duration) *Builder {
	b.config.ConnectTimeout = connect
	b.config.ReadTimeout = read
	b.config.WriteTimeout = write
	return b
}

// WithInsecureSkipVerify toggles TLS certificate verification
func (b *Builder) WithInsecureSkipVerify(skip bool) *Builder {
	b.config.InsecureSkipVerify = skip
	return b
}

// WithHTTP2 toggles HTTP/2 negotiation
func (b *Builder) WithHTTP2(enabled bool) *Builder {
	b.config.HTTP2 = enabled
	return b
}

// WithMaxRedirects sets how many redirects are followed
func (b *Builder) WithMaxRedirects(n int) *Builder {
	b.config.MaxRedirects = n
	return b
}

// WithInterrupter sets the token that cancels pauses, retries and downloads.
func (b *Builder) WithInterrupter(token *interrupt.Token) *Builder {
	b.token = token
	return b
}

// WithSleeper replaces the wait primitive used for every pause.
func (b *Builder) WithSleeper(s Sleeper) *Builder {
	b.sleeper = s
	return b
}

// WithProber replaces the connectivity probe.
func (b *Builder) WithProber(p Prober) *Builder {
	b.prober = p
	return b
}

// WithRateLimiter sets a client-side limiter waited on before each attempt.
func (b *Builder) WithRateLimiter(l *rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// WithTracerProvider sets the tracer provider (default: otel global)
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMeterProvider sets the meter provider (default: otel global)
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.meterProvider = mp
	return b
}

// WithRequestIDHeader sets the correlation header name
func (b *Builder) WithRequestIDHeader(header string) *Builder {
	b.config.RequestIDHeader = header
	return b
}

// Build creates the client with the configured options
func (b *Builder) Build() *Client {
	cfg := withDefaults(b.config)

	log := b.logger
	if log == nil {
		log = logger.Nop()
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg, b.transport)
	}

	token := b.token
	if token == nil {
		token = interrupt.New()
	}

	sleeper := b.sleeper
	if sleeper == nil {
		sleeper = SleeperFunc(token.Wait)
	}

	prober := b.prober
	if prober == nil {
		prober = DefaultProber()
	}

	limiter := b.limiter
	if limiter == nil && cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := b.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		config:     cfg,
		token:      token,
		sleeper:    sleeper,
		prober:     prober,
		limiter:    limiter,
		inst:       newInstruments(tp, mp, log),
	}
}

// TimedRequest performs one logical request, retrying transient statuses
// and transport failures. Any HTTP status is returned as a response; only
// failures to obtain one are errors.
func (c *Client) TimedRequest(ctx context.Context, method, rawURL string, req *Request) (*Response, error) {
	ctx = withRequestID(ctx)
	ctx, span := c.inst.startSpan(ctx, "network.TimedRequest", strings.ToUpper(method), rawURL)
	start := time.Now()

	resp, _, err := c.timedRequest(ctx, method, rawURL, req, false)
	c.inst.finish(ctx, span, strings.ToUpper(method), start, resp, err)
	return resp, err
}

// timedRequest runs the retry loop. In stream mode the returned response has
// no Body and the open body reader is handed to the caller.
func (c *Client) timedRequest(ctx context.Context, method, rawURL string, req *Request, stream bool) (*Response, io.ReadCloser, error) {
	method, err := c.checkArguments(method, rawURL, req)
	if err != nil {
		return nil, nil, err
	}

	var (
		failures    int
		escalations int
		attempts    int
		firstErr    error
		start       = time.Now()
	)

	// Transient statuses and deeper failures get exactly one retry and never
	// start an escalation; only plain failures are checked against the ceiling.
	for !c.interrupted(ctx) {
		attempts++
		resp, body, err := c.attempt(ctx, method, rawURL, req, stream)

		switch {
		case err == nil:
			if !transientStatuses[resp.StatusCode] || failures > 0 {
				resp.Stats = Stats{ElapsedTime: time.Since(start), Attempts: attempts}
				return resp, body, nil
			}
			closeQuietly(body)
			failures++
			c.logger.Debug().Str("url", rawURL).Int("status", resp.StatusCode).
				Msg("possibly transient status, retrying once")

		case c.interrupted(ctx):
			return nil, nil, c.interruptedError(ctx, rawURL)

		case isArgumentFailure(err):
			return nil, nil, NewError(KindArgument, addURL("Invalid request arguments", rawURL), err)

		case classifyFailure(err).deeper():
			if failures > 0 {
				return nil, nil, err
			}
			failures++
			c.logger.Debug().Err(err).Str("url", rawURL).Str("failure", classifyFailure(err).String()).
				Msg("retrying one more time after brief pause")

		default:
			failures++
			c.logger.Debug().Err(err).Str("url", rawURL).Int("failure", failures).Msg("request failed")
			if firstErr == nil {
				firstErr = err
			}
			if failures >= c.config.MaxConsecutiveFails {
				if escalations >= c.config.MaxEscalations {
					c.logger.Warn().Err(firstErr).Str("url", rawURL).Int("attempts", attempts).
						Msg("exceeded max failures and max escalations")
					return nil, nil, firstErr
				}
				escalations++
				failures = 0
				firstErr = nil
				pause := c.config.EscalationPause * time.Duration(escalations*escalations)
				c.logger.Warn().Str("url", rawURL).Int("escalation", escalations).Dur("pause", pause).
					Msg("pausing due to consecutive failures")
				if err := c.pause(ctx, pause, pauseEscalation, rawURL); err != nil {
					return nil, nil, err
				}
			}
		}

		if err := c.pause(ctx, c.config.BriefPause, pauseBrief, rawURL); err != nil {
			return nil, nil, err
		}
	}

	return nil, nil, c.interruptedError(ctx, rawURL)
}

// checkArguments normalises the method and rejects combinations that can
// never succeed, before any network traffic.
func (c *Client) checkArguments(method, rawURL string, req *Request) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(method))
	if !knownMethods[upper] {
		return "", NewError(KindArgument, addURL(fmt.Sprintf("Unknown HTTP method %q", method), rawURL), nil)
	}
	if req != nil && len(req.Body) > 0 && bodylessMethods[upper] {
		return "", NewError(KindArgument, addURL(fmt.Sprintf("HTTP %s does not take a request body", upper), rawURL), nil)
	}
	return upper, nil
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, method, rawURL string, req *Request, stream bool) (*Response, io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	httpReq, err := c.buildRequest(ctx, method, rawURL, req)
	if err != nil {
		return nil, nil, &argumentFailure{err: err}
	}

	c.logger.Debug().Str("method", method).Str("url", rawURL).Msg("sending request")
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.inst.recordAttempt(ctx, method, 0, err)
		return nil, nil, err
	}
	c.inst.recordAttempt(ctx, method, httpResp.StatusCode, nil)
	c.logger.Debug().Str("url", rawURL).Int("status", httpResp.StatusCode).Msg("received response")

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Reason:     reasonPhrase(httpResp),
		Headers:    httpResp.Header,
	}
	if stream {
		return resp, httpResp.Body, nil
	}

	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, err
	}
	resp.Body = body
	return resp, nil, nil
}

// buildRequest constructs an *http.Request with query, headers, auth and
// correlation headers applied.
func (c *Client) buildRequest(ctx context.Context, method, rawURL string, req *Request) (*nethttp.Request, error) {
	if req == nil {
		req = &Request{}
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, values := range req.Query {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}
	reqtrace.Inject(ctx, httpReq, c.config.RequestIDHeader)
	return httpReq, nil
}

// pause waits for d, reporting Interrupted if the wait was cut short or a
// cancellation arrived meanwhile.
func (c *Client) pause(ctx context.Context, d time.Duration, reason, rawURL string) error {
	c.inst.recordPause(ctx, reason)
	c.logger.Debug().Str("url", rawURL).Str("reason", reason).Dur("pause", d).Msg("pausing")
	if err := c.sleeper.Sleep(ctx, d); err != nil || c.interrupted(ctx) {
		return c.interruptedError(ctx, rawURL)
	}
	return nil
}

func (c *Client) interrupted(ctx context.Context) bool {
	return c.token.Interrupted() || ctx.Err() != nil
}

func (c *Client) interruptedError(ctx context.Context, rawURL string) error {
	c.logger.Info().Str("url", rawURL).Msg("network request interrupted")
	return NewError(KindInterrupted, addURL("Network request has been interrupted", rawURL), ctx.Err())
}

// withRequestID pins one request ID for every attempt of a top-level call.
func withRequestID(ctx context.Context) context.Context {
	return reqtrace.WithRequestID(ctx, reqtrace.EnsureRequestID(ctx))
}

func reasonPhrase(resp *nethttp.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		return httpcode.Phrase(resp.StatusCode)
	}
	return reason
}

func addURL(text, rawURL string) string {
	return text + " for " + rawURL
}

func closeQuietly(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}
