package network

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Defaults of the connectivity probe: a plain TCP connection to a public
// DNS server.
const (
	DefaultProbeAddress = "8.8.8.8"
	DefaultProbePort    = 53
	DefaultProbeTimeout = 5 * time.Second
)

// Available reports whether a TCP connection to address:port can be opened
// within timeout.
func Available(ctx context.Context, address string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// TCPProber probes connectivity with Available. Zero fields select the
// Default* values.
type TCPProber struct {
	Address string
	Port    int
	Timeout time.Duration
}

// Reachable implements Prober.
func (p TCPProber) Reachable(ctx context.Context) bool {
	address, port, timeout := p.Address, p.Port, p.Timeout
	if address == "" {
		address = DefaultProbeAddress
	}
	if port <= 0 {
		port = DefaultProbePort
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return Available(ctx, address, port, timeout)
}

// DefaultProber returns the prober used when none is configured.
func DefaultProber() Prober {
	return TCPProber{}
}
