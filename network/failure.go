package network

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// failure is the class of an error returned by the HTTP transport.
type failure int

const (
	failureOther failure = iota
	failureTimeout
	failureConnection
	failureRefused
	failureProtocol
	failureRedirect
	failureProxy
	failureDecoding
)

var failureNames = map[failure]string{
	failureOther:      "other",
	failureTimeout:    "timeout",
	failureConnection: "connection",
	failureRefused:    "connection_refused",
	failureProtocol:   "protocol",
	failureRedirect:   "redirect",
	failureProxy:      "proxy",
	failureDecoding:   "decoding",
}

func (f failure) String() string {
	return failureNames[f]
}

// deeper failures point at something a long retry sequence will not fix.
// They are retried exactly once.
func (f failure) deeper() bool {
	switch f {
	case failureRefused, failureProtocol, failureRedirect, failureProxy, failureDecoding:
		return true
	}
	return false
}

// networkLevel failures are the ones worth probing connectivity for.
func (f failure) networkLevel() bool {
	switch f {
	case failureConnection, failureRefused, failureProtocol:
		return true
	}
	return false
}

func classifyFailure(err error) failure {
	switch {
	case err == nil:
		return failureOther
	case errors.Is(err, ErrTooManyRedirects) || strings.Contains(err.Error(), "stopped after"):
		return failureRedirect
	case isProxyError(err):
		return failureProxy
	case isDecodingError(err):
		return failureDecoding
	case isTimeout(err):
		return failureTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return failureRefused
	case isProtocolError(err):
		return failureProtocol
	case isConnectionError(err):
		return failureConnection
	default:
		return failureOther
	}
}

func isProxyError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "proxyconnect"
}

func isDecodingError(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) || errors.As(err, &corrupt)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isProtocolError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "malformed HTTP") || strings.Contains(msg, "server gave HTTP response to HTTPS client")
}

func isConnectionError(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	return errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

// isArgumentFailure recognises transport errors caused by the request itself.
func isArgumentFailure(err error) bool {
	var argErr *argumentFailure
	if errors.As(err, &argErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unsupported protocol scheme") || strings.Contains(msg, "no Host in request URL")
}

// argumentFailure wraps a request construction error.
type argumentFailure struct {
	err error
}

func (e *argumentFailure) Error() string { return e.err.Error() }
func (e *argumentFailure) Unwrap() error { return e.err }
