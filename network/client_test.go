package network

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caltechlibrary/commonpy/interrupt"
	"github.com/caltechlibrary/commonpy/logger"
	reqtrace "github.com/caltechlibrary/commonpy/trace"
)

func TestNewClient(t *testing.T) {
	client := NewClient(logger.Nop())

	require.NotNil(t, client)
	assert.Equal(t, DefaultConfig(), client.config)
	assert.Nil(t, client.limiter)
	assert.IsType(t, TCPProber{}, client.prober)
}

func TestBuilder(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		client := NewBuilder(nil).Build()
		require.NotNil(t, client)
		assert.NotNil(t, client.logger)
	})

	t.Run("with timeouts", func(t *testing.T) {
		client := NewBuilder(logger.Nop()).
			WithTimeouts(time.Second, 2*time.Second, 3*time.Second).
			WithMaxRedirects(4).
			WithHTTP2(false).
			WithInsecureSkipVerify(false).
			Build()

		assert.Equal(t, time.Second, client.config.ConnectTimeout)
		assert.Equal(t, 2*time.Second, client.config.ReadTimeout)
		assert.Equal(t, 3*time.Second, client.config.WriteTimeout)
		assert.Equal(t, 4, client.config.MaxRedirects)

		transport, ok := client.httpClient.Transport.(*nethttp.Transport)
		require.True(t, ok)
		assert.False(t, transport.ForceAttemptHTTP2)
		assert.False(t, transport.TLSClientConfig.InsecureSkipVerify)
		assert.Equal(t, 2*time.Second, transport.ResponseHeaderTimeout)
	})

	t.Run("default transport trusts any certificate", func(t *testing.T) {
		client := NewClient(logger.Nop())
		transport, ok := client.httpClient.Transport.(*nethttp.Transport)
		require.True(t, ok)
		assert.True(t, transport.ForceAttemptHTTP2)
		assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("caller http client is used as is", func(t *testing.T) {
		hc := &nethttp.Client{Timeout: time.Minute}
		client := NewBuilder(logger.Nop()).WithHTTPClient(hc).Build()
		assert.Same(t, hc, client.httpClient)
	})

	t.Run("limiter from config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RequestsPerSecond = 5
		client := NewBuilder(logger.Nop()).WithConfig(cfg).Build()
		require.NotNil(t, client.limiter)
		assert.Equal(t, 1, client.limiter.Burst())
	})

	t.Run("config defaults filled", func(t *testing.T) {
		client := NewBuilder(logger.Nop()).WithConfig(Config{MaxEscalations: -1}).Build()
		assert.Equal(t, DefaultTimeout, client.config.ConnectTimeout)
		assert.Equal(t, DefaultMaxConsecutiveFails, client.config.MaxConsecutiveFails)
		assert.Equal(t, DefaultMaxEscalations, client.config.MaxEscalations)
		assert.Equal(t, reqtrace.HeaderXRequestID, client.config.RequestIDHeader)
		assert.Zero(t, client.config.BriefPause)
	})
}

func TestTimedRequestArguments(t *testing.T) {
	var calls int32
	transport := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errBoom
	})
	client := newTestBuilder(&recordingSleeper{}, &countingProber{}).WithTransport(transport).Build()

	tests := []struct {
		name   string
		method string
		req    *Request
	}{
		{name: "unknown method", method: "FETCH"},
		{name: "empty method", method: ""},
		{name: "body with get", method: "get", req: &Request{Body: []byte("x")}},
		{name: "body with head", method: "HEAD", req: &Request{Body: []byte("x")}},
		{name: "body with delete", method: "delete", req: &Request{Body: []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.TimedRequest(context.Background(), tt.method, "http://example.org/", tt.req)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsKind(err, KindArgument))
			assert.ErrorIs(t, err, ErrArgument)
			assert.Contains(t, err.Error(), "for http://example.org/")
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestTimedRequestTransportArgumentErrors(t *testing.T) {
	sleeper := &recordingSleeper{}
	client := newTestClient(sleeper)

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := client.TimedRequest(context.Background(), "get", "ftp://example.org/file", nil)
		assert.True(t, IsKind(err, KindArgument))
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := client.TimedRequest(context.Background(), "get", "http://example.org/%zz", nil)
		assert.True(t, IsKind(err, KindArgument))
	})

	assert.Empty(t, sleeper.recorded())
}

func TestTimedRequestTransientStatus(t *testing.T) {
	t.Run("retried once then succeeds", func(t *testing.T) {
		srv := newStatusServer(t, testBody, 400, 200)
		sleeper := &recordingSleeper{}

		resp, err := newTestClient(sleeper).TimedRequest(context.Background(), "get", srv.URL, nil)

		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, testBody, resp.Text())
		assert.Equal(t, 2, resp.Stats.Attempts)
		assert.Equal(t, 2, srv.hitCount())
		assert.Equal(t, []time.Duration{DefaultBriefPause}, sleeper.recorded())
	})

	t.Run("second occurrence is returned", func(t *testing.T) {
		srv := newStatusServer(t, "", 503)

		resp, err := newTestClient(&recordingSleeper{}).TimedRequest(context.Background(), "GET", srv.URL, nil)

		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "Service Unavailable", resp.Reason)
		assert.Equal(t, 2, resp.Stats.Attempts)
	})

	t.Run("single failure ceiling still retries once", func(t *testing.T) {
		srv := newStatusServer(t, "", 503)
		sleeper := &recordingSleeper{}
		cfg := DefaultConfig()
		cfg.MaxConsecutiveFails = 1
		client := newTestBuilder(sleeper, &countingProber{}).WithConfig(cfg).Build()

		resp, err := client.Net(context.Background(), "get", srv.URL, nil)

		assert.True(t, IsKind(err, KindServiceFailure))
		require.NotNil(t, resp)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, 2, srv.hitCount())
		assert.Equal(t, []time.Duration{DefaultBriefPause}, sleeper.recorded())
	})

	t.Run("other statuses are returned at once", func(t *testing.T) {
		srv := newStatusServer(t, "", 404)
		sleeper := &recordingSleeper{}

		resp, err := newTestClient(sleeper).TimedRequest(context.Background(), "get", srv.URL, nil)

		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, 1, srv.hitCount())
		assert.Empty(t, sleeper.recorded())
	})
}

func TestTimedRequestEscalation(t *testing.T) {
	var calls int32
	sleeper := &recordingSleeper{}
	client := newTestBuilder(sleeper, &countingProber{}).
		WithTransport(failingTransport(errBoom, &calls)).
		Build()

	resp, err := client.TimedRequest(context.Background(), "get", "http://example.org/", nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, ErrorKind(KindNone), KindOf(err))
	assert.EqualValues(t, 18, atomic.LoadInt32(&calls))

	var escalations []time.Duration
	for _, p := range sleeper.recorded() {
		if p != DefaultBriefPause {
			escalations = append(escalations, p)
		}
	}
	assert.Equal(t, []time.Duration{10 * time.Second, 40 * time.Second, 90 * time.Second, 160 * time.Second, 250 * time.Second}, escalations)
	assert.Equal(t, 17, sleeper.count(DefaultBriefPause))
}

func TestTimedRequestDeeperFailure(t *testing.T) {
	t.Run("propagated after one retry", func(t *testing.T) {
		var calls int32
		sleeper := &recordingSleeper{}
		client := newTestBuilder(sleeper, &countingProber{}).
			WithTransport(failingTransport(io.ErrUnexpectedEOF, &calls)).
			Build()

		_, err := client.TimedRequest(context.Background(), "get", "http://example.org/", nil)

		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
		assert.Equal(t, []time.Duration{DefaultBriefPause}, sleeper.recorded())
	})

	t.Run("recovers on second try", func(t *testing.T) {
		var calls int32
		transport := roundTripperFunc(func(req *nethttp.Request) (*nethttp.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, io.ErrUnexpectedEOF
			}
			return &nethttp.Response{
				StatusCode: 200,
				Status:     "200 OK",
				Header:     nethttp.Header{},
				Body:       io.NopCloser(stringsReader(testBody)),
				Request:    req,
			}, nil
		})
		client := newTestBuilder(&recordingSleeper{}, &countingProber{}).WithTransport(transport).Build()

		resp, err := client.TimedRequest(context.Background(), "get", "http://example.org/", nil)

		require.NoError(t, err)
		assert.Equal(t, testBody, resp.Text())
		assert.Equal(t, "OK", resp.Reason)
		assert.Equal(t, 2, resp.Stats.Attempts)
	})
}

func TestTimedRequestInterrupted(t *testing.T) {
	t.Run("signal cuts escalation short", func(t *testing.T) {
		token := interrupt.New()
		cfg := DefaultConfig()
		cfg.BriefPause = time.Millisecond
		cfg.EscalationPause = time.Hour

		var calls int32
		client := NewBuilder(logger.Nop()).
			WithConfig(cfg).
			WithInterrupter(token).
			WithProber(&countingProber{}).
			WithTransport(failingTransport(errBoom, &calls)).
			Build()

		go func() {
			time.Sleep(50 * time.Millisecond)
			token.Signal()
		}()

		start := time.Now()
		_, err := client.TimedRequest(context.Background(), "get", "http://example.org/", nil)

		require.Error(t, err)
		assert.True(t, IsKind(err, KindInterrupted))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})

	t.Run("signal from sleeper", func(t *testing.T) {
		token := interrupt.New()
		sleeper := &recordingSleeper{onCall: func(int) { token.Signal() }}
		srv := newStatusServer(t, "", 502)
		client := newTestBuilder(sleeper, &countingProber{}).WithInterrupter(token).Build()

		_, err := client.TimedRequest(context.Background(), "get", srv.URL, nil)

		assert.ErrorIs(t, err, ErrInterrupted)
		assert.Equal(t, 1, srv.hitCount())
	})

	t.Run("cancelled context makes no attempt", func(t *testing.T) {
		srv := newStatusServer(t, "", 200)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(&recordingSleeper{}).TimedRequest(ctx, "get", srv.URL, nil)

		assert.True(t, IsKind(err, KindInterrupted))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, srv.hitCount())
	})
}

func TestTimedRequestBuildsRequest(t *testing.T) {
	srv := newStatusServer(t, "", 503, 200)
	req := &Request{
		Headers: map[string]string{"Accept": "application/json"},
		Query:   url.Values{"q": {"go lang"}},
		Auth:    &BasicAuth{Username: "user", Password: "secret"},
	}

	_, err := newTestClient(&recordingSleeper{}).TimedRequest(context.Background(), "get", srv.URL+"/search?page=2", req)
	require.NoError(t, err)

	got := srv.recorded()
	require.Len(t, got, 2)
	first := got[0]
	assert.Equal(t, nethttp.MethodGet, first.Method)
	assert.Equal(t, "2", first.URL.Query().Get("page"))
	assert.Equal(t, "go lang", first.URL.Query().Get("q"))
	assert.Equal(t, "application/json", first.Header.Get("Accept"))
	user, pass, ok := first.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "secret", pass)

	id := first.Header.Get(reqtrace.HeaderXRequestID)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, got[1].Header.Get(reqtrace.HeaderXRequestID), "retries share the request ID")
}

func TestTimedRequestUsesContextRequestID(t *testing.T) {
	srv := newStatusServer(t, "", 200)
	ctx := reqtrace.WithRequestID(context.Background(), "req-123")

	_, err := newTestClient(&recordingSleeper{}).TimedRequest(ctx, "post", srv.URL, &Request{Body: []byte(`{}`)})
	require.NoError(t, err)

	got := srv.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, nethttp.MethodPost, got[0].Method)
	assert.Equal(t, "req-123", got[0].Header.Get(reqtrace.HeaderXRequestID))
}

func TestPauseSleeperError(t *testing.T) {
	sleeper := SleeperFunc(func(context.Context, time.Duration) error {
		return errors.New("cut short")
	})
	client := newTestClient(sleeper)

	err := client.pause(context.Background(), time.Second, pauseBrief, "http://example.org/")

	assert.True(t, IsKind(err, KindInterrupted))
}
