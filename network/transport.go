package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"time"
)

// newHTTPClient builds the client used when the caller does not supply one.
// A nil rt selects a transport configured from cfg.
func newHTTPClient(cfg Config, rt nethttp.RoundTripper) *nethttp.Client {
	if rt == nil {
		rt = newTransport(cfg)
	}
	return &nethttp.Client{
		Transport:     rt,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}
}

func newTransport(cfg Config) *nethttp.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &nethttp.Transport{
		Proxy:                 nethttp.ProxyFromEnvironment,
		DialContext:           deadlineDialer(dialer, cfg.ReadTimeout, cfg.WriteTimeout),
		ForceAttemptHTTP2:     cfg.HTTP2,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // verification is switched off on purpose unless configured
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
	}
}

func redirectPolicy(maxRedirects int) func(*nethttp.Request, []*nethttp.Request) error {
	return func(_ *nethttp.Request, via []*nethttp.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: stopped after %d redirects", ErrTooManyRedirects, maxRedirects)
		}
		return nil
	}
}

// deadlineDialer applies the read and write timeouts to every I/O operation
// on the connection rather than to the request as a whole.
func deadlineDialer(d *net.Dialer, read, write time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, read: read, write: write}, nil
	}
}

type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
