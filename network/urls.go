package network

import (
	"net"
	"net/url"
	"strings"
)

// Hostname returns the host part of rawURL without port. Strings without a
// scheme, such as "example.com/path", are read as if they had one.
func Hostname(rawURL string) string {
	if !hasHTTPPrefix(rawURL) {
		rawURL = "http://" + strings.TrimPrefix(rawURL, "//")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Scheme returns the scheme of rawURL, or "" if it has none.
func Scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Netloc returns the host[:port] part of rawURL, including any userinfo.
func Netloc(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil && u.Host != "" {
		return netloc(u)
	}
	if !strings.HasPrefix(strings.ToLower(rawURL), "http") && !strings.Contains(rawURL, "//") {
		if u, err := url.Parse("http://" + rawURL); err == nil {
			return netloc(u)
		}
	}
	if err != nil {
		return ""
	}
	return u.Path
}

func netloc(u *url.URL) string {
	if u.User != nil {
		return u.User.String() + "@" + u.Host
	}
	return u.Host
}

// IsLoopback reports whether host names the local machine.
func IsLoopback(host string) bool {
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// hasHTTPPrefix reports whether rawURL starts with an http or https scheme,
// in any letter case.
func hasHTTPPrefix(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
