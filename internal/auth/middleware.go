package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Somchit-cmd/adminawaylog/internal/config"
)

// Middleware — проверка admin-токена
type Middleware struct {
	config  *config.Config
	service *Service
}

func NewMiddleware(cfg *config.Config, service *Service) *Middleware {
	return &Middleware{config: cfg, service: service}
}

// RequireAdmin protects everything except the public surface. With AUTH_REQUIRED
// off, a valid token is still attached to the context when one is sent.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			if m.config.AuthRequired {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.service.VerifyJWT(raw)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				writeError(w, http.StatusForbidden, "forbidden", "Admin role required")
				return
			}
			if m.config.AuthRequired {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// bearerToken reads the Authorization header; websocket upgrades may pass
// access_token in the query because browsers cannot set headers there.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func isPublicRequest(r *http.Request) bool {
	path := r.URL.Path
	switch {
	case path == "/healthz", strings.HasPrefix(path, "/v1/auth/"):
		return true
	case r.Method == http.MethodPost && (path == "/v1/reports" || path == "/v1/photos/preview"):
		return true
	case r.Method == http.MethodOptions:
		return true
	}
	return false
}
