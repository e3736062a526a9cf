package httpserver

import (
	"net"
	"net/http"
	"strings"

	"github.com/Somchit-cmd/adminawaylog/internal/userctx"
	"github.com/lucsky/cuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with an ID and the client IP.
// An incoming X-Request-ID is kept when it looks sane.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = cuid.New()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := userctx.WithRequestID(r.Context(), id)
		ctx = userctx.WithClientIP(ctx, extractIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractIP(r *http.Request) string {
	// Prefer X-Forwarded-For for proxied setups
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
