package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Somchit-cmd/adminawaylog/internal/config"
)

func TestRequireAdmin(t *testing.T) {
	cfg := testConfig(t, config.AuthModeDev, true)
	svc := NewService(cfg)
	mw := NewMiddleware(cfg, svc)

	tok, err := svc.SignInDev(t.Context())
	if err != nil {
		t.Fatalf("SignInDev: %v", err)
	}

	var gotSubject string
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		target     string
		header     map[string]string
		wantStatus int
		wantSub    string
	}{
		{"healthz public", http.MethodGet, "/healthz", nil, http.StatusOK, ""},
		{"submit public", http.MethodPost, "/v1/reports", nil, http.StatusOK, ""},
		{"preview public", http.MethodPost, "/v1/photos/preview", nil, http.StatusOK, ""},
		{"list needs token", http.MethodGet, "/v1/reports", nil, http.StatusUnauthorized, ""},
		{"bad token", http.MethodGet, "/v1/reports", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
		{"wrong scheme", http.MethodGet, "/v1/reports", map[string]string{"Authorization": "Basic " + tok.AccessToken}, http.StatusUnauthorized, ""},
		{"valid token", http.MethodGet, "/v1/reports", map[string]string{"Authorization": "Bearer " + tok.AccessToken}, http.StatusOK, "dev-admin"},
		{"websocket query token", http.MethodGet, "/v1/reports/live?access_token=" + tok.AccessToken, map[string]string{"Upgrade": "websocket"}, http.StatusOK, "dev-admin"},
		{"query token ignored without upgrade", http.MethodGet, "/v1/reports?access_token=" + tok.AccessToken, nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if gotSubject != tt.wantSub {
				t.Fatalf("expected subject %q, got %q", tt.wantSub, gotSubject)
			}
		})
	}
}

func TestRequireAdminOpenWhenNotRequired(t *testing.T) {
	cfg := testConfig(t, config.AuthModeNone, false)
	mw := NewMiddleware(cfg, NewService(cfg))
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/reports/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected open access, got %d", w.Code)
	}
}
