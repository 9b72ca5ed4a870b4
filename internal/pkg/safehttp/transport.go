// Package safehttp provides HTTP clients for calling user-configured URLs.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

const dialTimeout = 5 * time.Second

// Transport refuses connections whose remote address is loopback, private
// or link-local. The check runs after the dial so DNS answers cannot bypass it.
// It is shared so clients built per request reuse its connection pool.
var Transport = &http.Transport{
	DialContext:         dialPublic,
	TLSHandshakeTimeout: dialTimeout,
	MaxIdleConns:        16,
	IdleConnTimeout:     90 * time.Second,
}

// NewClient returns a client using Transport with the given overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: Transport, Timeout: timeout}
}

func dialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("safehttp: cannot parse remote address for %q", addr)
	}
	if IsPrivate(ip) {
		conn.Close()
		return nil, fmt.Errorf("safehttp: access to private address %s denied", ip)
	}
	return conn, nil
}

// IsPrivate reports whether ip is loopback, private, link-local or unspecified.
func IsPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
