package network

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"
	"time"
)

var (
	authStatuses = map[int]bool{401: true, 402: true, 403: true, 407: true, 451: true, 511: true}

	noContentStatuses = map[int]bool{404: true, 410: true}

	internalStatuses = map[int]bool{
		405: true, 406: true, 409: true, 411: true, 412: true, 413: true,
		414: true, 417: true, 428: true, 431: true, 505: true, 510: true,
	}

	rejectedStatuses = map[int]bool{415: true, 416: true}

	serverStatuses = map[int]bool{500: true, 501: true, 502: true, 503: true, 504: true, 506: true, 507: true, 508: true}
)

// Classify maps an HTTP status to the kind of failure it represents.
// KindNone means the status is a success. 429 maps to KindRateLimitExceeded;
// whether it is retried first is up to the caller.
func Classify(code int, polling bool) ErrorKind {
	switch {
	case code == nethttp.StatusBadRequest:
		return KindServiceFailure
	case authStatuses[code]:
		return KindAuthentication
	case noContentStatuses[code]:
		if polling {
			return KindNone
		}
		return KindNoContent
	case internalStatuses[code]:
		return KindInternal
	case rejectedStatuses[code]:
		return KindServiceFailure
	case code == nethttp.StatusTooManyRequests:
		return KindRateLimitExceeded
	case serverStatuses[code]:
		return KindServiceFailure
	case code < 200 || code >= 400:
		return KindNetworkFailure
	default:
		return KindNone
	}
}

// statusError builds the classified error for resp, or nil on success.
func statusError(resp *Response, rawURL string, polling bool) error {
	code := resp.StatusCode
	kind := Classify(code, polling)

	var err *Error
	switch {
	case kind == KindNone:
		return nil
	case code == nethttp.StatusBadRequest:
		err = newStatusError(kind, code, "Server rejected the request")
	case kind == KindAuthentication:
		err = newStatusError(kind, code, "Access is forbidden")
	case kind == KindNoContent:
		err = newStatusError(kind, code, "No content found")
	case kind == KindInternal:
		err = newStatusError(kind, code, "Server returned code %d (%s)", code, resp.Reason)
	case rejectedStatuses[code]:
		err = newStatusError(kind, code, "Server rejected the request (%s)", resp.Reason)
	case kind == KindRateLimitExceeded:
		err = newStatusError(kind, code, "Server blocking requests due to rate limits")
	case kind == KindServiceFailure:
		err = newStatusError(kind, code, "Server error (code %d -- %s)", code, resp.Reason)
	default:
		err = newStatusError(kind, code, "Unable to resolve %s", rawURL)
	}
	err.message = addURL(err.message, rawURL)
	return err
}

// Net performs the request and classifies the outcome. A non-success
// status yields both the response and a classified error so the caller can
// inspect the body. Transport failures that survive the retries yield a nil
// response: network-level ones are classified after a connectivity probe,
// anything else is returned unchanged.
//
// Unless WithoutRateHandling is given, 429 responses are retried after
// pauses of RateLimitPause, 2*RateLimitPause and so on, up to
// MaxRecursiveCalls times.
func (c *Client) Net(ctx context.Context, method, rawURL string, req *Request, opts ...NetOption) (*Response, error) {
	o := netOptions{handleRate: true}
	for _, opt := range opts {
		opt(&o)
	}

	ctx = withRequestID(ctx)
	ctx, span := c.inst.startSpan(ctx, "network.Net", strings.ToUpper(method), rawURL)
	start := time.Now()

	resp, err := c.net(ctx, method, rawURL, req, o)
	c.inst.finish(ctx, span, strings.ToUpper(method), start, resp, err)
	if err != nil && !IsKind(err, KindArgument) {
		c.logger.Info().Err(err).Str("url", rawURL).Str("kind", errorType(err)).Msg("network request failed")
	}
	return resp, err
}

func (c *Client) net(ctx context.Context, method, rawURL string, req *Request, o netOptions) (*Response, error) {
	start := time.Now()
	attempts := 0

	for depth := 0; ; depth++ {
		resp, _, err := c.timedRequest(ctx, method, rawURL, req, false)
		if err != nil {
			return nil, c.classifyError(ctx, rawURL, err)
		}
		attempts += resp.Stats.Attempts
		resp.Stats = Stats{ElapsedTime: time.Since(start), Attempts: attempts}

		if resp.StatusCode == nethttp.StatusTooManyRequests && o.handleRate && depth < c.config.MaxRecursiveCalls {
			pause := c.config.RateLimitPause * time.Duration(depth+1)
			c.logger.Warn().Str("url", rawURL).Int("retry", depth+1).Dur("pause", pause).
				Msg("rate limit hit, pausing")
			if err := c.pause(ctx, pause, pauseRateLimit, rawURL); err != nil {
				return resp, err
			}
			continue
		}
		return resp, statusError(resp, rawURL, o.polling)
	}
}

// Do is Net for callers that only want a response on success: any
// classified failure returns a nil response.
func (c *Client) Do(ctx context.Context, method, rawURL string, req *Request, opts ...NetOption) (*Response, error) {
	resp, err := c.Net(ctx, method, rawURL, req, opts...)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// classifyError turns a transport failure into a NetworkFailure or a
// ServiceFailure depending on whether the network at large is reachable.
// Classified errors and failures that are not network-level pass through.
func (c *Client) classifyError(ctx context.Context, rawURL string, err error) error {
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if c.interrupted(ctx) {
		return c.interruptedError(ctx, rawURL)
	}
	if !classifyFailure(err).networkLevel() {
		return err
	}

	// A local service being down says nothing about the network.
	if IsLoopback(Hostname(rawURL)) || c.prober.Reachable(ctx) {
		return NewError(KindServiceFailure, addURL("Network or server error", rawURL), err)
	}
	return NewError(KindNetworkFailure, addURL("Network connectivity failure", rawURL), err)
}
