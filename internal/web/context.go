package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/sheetstore/internal/store"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for audit
// details.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return store.ContextWithRequestMetadata(ctx, clientIP(r), r.UserAgent())
}

// clientIP strips the port from RemoteAddr, which TrustedRealIP has already
// rewritten for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
