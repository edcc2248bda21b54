// Package request holds per-request values shared by middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey struct{}

// MaxRequestIDLength bounds client-supplied request IDs
const MaxRequestIDLength = 64

// ClientIP returns the address used to rate limit a client: the first valid
// X-Forwarded-For entry, then X-Real-IP, then the connection's remote host.
// Ports are dropped so every connection from one host shares a key.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			if ip := parseIP(hop); ip != "" {
				return ip
			}
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := parseIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// parseIP accepts "ip" or "ip:port" (bracketed for IPv6) and returns the
// canonical IP, or "" when s is not an address
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// NormalizeRequestID returns id when it is safe to echo and log, otherwise a
// fresh UUID. Safe IDs are non-empty printable ASCII without spaces.
func NormalizeRequestID(id string) string {
	if id == "" || len(id) > MaxRequestIDLength {
		return uuid.NewString()
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return uuid.NewString()
		}
	}
	return id
}

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestIDFromContext returns the request ID, or "" if none was set
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
