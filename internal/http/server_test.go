package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"spendlog/internal/auth"
	"spendlog/internal/config"
	"spendlog/internal/storage"
)

const testCookieSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	srv      *Server
	sessions *auth.SessionManager
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithProvider(t, "https://idp.example.com")
}

// newHarnessWithProvider points the auth client at a test identity
// provider, usually an httptest server standing in for the real one.
func newHarnessWithProvider(t *testing.T, authDomain string) *harness {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		AuthDomain:            authDomain,
		AuthClientID:          "client-id",
		AuthClientSecret:      "client-secret",
		AuthRedirectURL:       "http://localhost:8081/api/callback",
		AuthLogoutRedirectURL: "http://localhost:8081/",
	}
	sessions := auth.NewSessionManager(testCookieSecret, true)
	srv := NewServer(":0", repo, auth.NewClient(cfg), sessions)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &harness{srv: srv, sessions: sessions}
}

func (h *harness) signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	require.NoError(t, err)
	return tok
}

// sessionCookies mints a signed cookie set for the given subject, the
// way the callback handler would after a successful exchange.
func (h *harness) sessionCookies(t *testing.T, sub string) []*http.Cookie {
	t.Helper()
	idToken := h.signToken(t, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	accessToken := h.signToken(t, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := httptest.NewRecorder()
	sess := h.sessions.Session(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	sess.Set(auth.ItemIDToken, idToken)
	sess.Set(auth.ItemAccessToken, accessToken)
	return rec.Result().Cookies()
}

// do runs one request through the full middleware chain. An empty sub
// means no session cookies.
func (h *harness) do(t *testing.T, method, target, body, sub string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sub != "" {
		for _, c := range h.sessionCookies(t, sub) {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing frame options header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		want      string
	}{
		{name: "single forwarded hop", forwarded: "203.0.113.7", want: "203.0.113.7"},
		{name: "multiple forwarded hops", forwarded: "203.0.113.7, 70.41.3.18, 150.172.238.178", want: "203.0.113.7"},
		{name: "real ip fallback", realIP: "198.51.100.4", want: "198.51.100.4"},
		{name: "remote addr fallback", want: "192.0.2.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			require.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestGuardedRoutesRejectAnonymous(t *testing.T) {
	h := newHarness(t)

	targets := []struct{ method, path string }{
		{http.MethodGet, "/api/expenses"},
		{http.MethodGet, "/api/expenses/total-spent"},
		{http.MethodGet, "/api/expenses/1"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodPut, "/api/expenses/1"},
		{http.MethodDelete, "/api/expenses/1"},
	}
	for _, target := range targets {
		rec := h.do(t, target.method, target.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", target.method, target.path, rec.Code)
		}
	}
}
