package network

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (string, int, net.Listener) {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
	}
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, l
}

func TestAvailable(t *testing.T) {
	host, port, l := listen(t)
	defer l.Close()

	assert.True(t, Available(context.Background(), host, port, time.Second))
}

func TestAvailableClosedPort(t *testing.T) {
	host, port, l := listen(t)
	require.NoError(t, l.Close())

	assert.False(t, Available(context.Background(), host, port, time.Second))
}

func TestTCPProber(t *testing.T) {
	host, port, l := listen(t)
	defer l.Close()

	prober := TCPProber{Address: host, Port: port, Timeout: time.Second}
	assert.True(t, prober.Reachable(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, prober.Reachable(ctx))
}
