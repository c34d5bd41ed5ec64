package network

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caltechlibrary/commonpy/logger"
)

const testBody = "payload"

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// failingTransport returns err on every call and counts the calls.
func failingTransport(err error, calls *int32) nethttp.RoundTripper {
	return roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(calls, 1)
		return nil, err
	})
}

// recordingSleeper records pauses instead of sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
	onCall func(n int)
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	n := len(s.pauses)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(n)
	}
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

func (s *recordingSleeper) count(d time.Duration) int {
	n := 0
	for _, p := range s.recorded() {
		if p == d {
			n++
		}
	}
	return n
}

type countingProber struct {
	reachable bool
	calls     int32
}

func (p *countingProber) Reachable(context.Context) bool {
	atomic.AddInt32(&p.calls, 1)
	return p.reachable
}

// statusServer answers with the given statuses in order, repeating the last
// one, and counts the hits.
type statusServer struct {
	*httptest.Server
	hits     int32
	mu       sync.Mutex
	requests []*nethttp.Request
}

func newStatusServer(t *testing.T, body string, statuses ...int) *statusServer {
	t.Helper()
	s := &statusServer{}
	s.Server = httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := int(atomic.AddInt32(&s.hits, 1))
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(context.Background()))
		s.mu.Unlock()

		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *statusServer) hitCount() int {
	return int(atomic.LoadInt32(&s.hits))
}

func (s *statusServer) recorded() []*nethttp.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*nethttp.Request(nil), s.requests...)
}

func newTestBuilder(sleeper Sleeper, prober Prober) *Builder {
	return NewBuilder(logger.Nop()).
		WithSleeper(sleeper).
		WithProber(prober)
}

func newTestClient(sleeper Sleeper) *Client {
	return newTestBuilder(sleeper, &countingProber{reachable: true}).Build()
}

// timeoutError mimics a net.Error reporting a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errBoom = errors.New("boom")

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
