// Package horosafe holds the input-safety checks applied to caller-supplied
// target URLs and request bodies.
package horosafe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnsafeScheme is returned for URLs that are not http or https.
	ErrUnsafeScheme = errors.New("horosafe: only http and https URLs are allowed")
	// ErrNoHost is returned for URLs without a host.
	ErrNoHost = errors.New("horosafe: URL has no host")
	// ErrSSRF is returned when a URL targets a private or loopback address.
	ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")
	// ErrHostNotAllowed is returned when a host is outside the allow-list.
	ErrHostNotAllowed = errors.New("horosafe: host not allowed")
	// ErrTooLarge is returned by LimitedReadAll past its limit.
	ErrTooLarge = errors.New("horosafe: body too large")
)

// CheckScheme parses rawURL and requires an absolute http(s) URL with a host.
func CheckScheme(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return nil, ErrNoHost
	}
	return u, nil
}

// ValidateURL runs CheckScheme and rejects hosts that are, or resolve to,
// private or loopback addresses. A DNS failure is not an error here: the
// navigation itself will fail.
func ValidateURL(ctx context.Context, rawURL string) error {
	u, err := CheckScheme(rawURL)
	if err != nil {
		return err
	}
	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if isPrivate(addr) {
			return ErrSSRF
		}
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	addrs, err := net.DefaultResolver.LookupNetIP(rctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if isPrivate(a) {
			return ErrSSRF
		}
	}
	return nil
}

// HostAllowed reports whether host equals an entry of allowed or is a
// subdomain of one. An empty allow-list allows everything.
func HostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "."))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// LimitedReadAll reads at most maxBytes from r, failing with ErrTooLarge
// beyond that.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("fc00::/7"),
}

func isPrivate(a netip.Addr) bool {
	a = a.Unmap()
	if a.IsLoopback() || a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() || a.IsUnspecified() {
		return true
	}
	for _, p := range privatePrefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
