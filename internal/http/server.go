// Package http wires the expense and identity handlers into a server.
//
// Request flow: security headers -> rate limit -> request logging ->
// identity guard (API routes) -> handler. Handlers share no mutable
// state beyond the storage pool, the rate limiter and the identity
// cache, so every request is handled independently.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"spendlog/internal/auth"
	applog "spendlog/internal/log"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/storage"
)

type Server struct {
	http.Server
	repo         *storage.Repository
	authClient   *auth.Client
	sessions     *auth.SessionManager
	resolver     *auth.Resolver
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, repo *storage.Repository, authClient *auth.Client, sessions *auth.SessionManager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		repo:       repo,
		authClient: authClient,
		sessions:   sessions,
		resolver:   auth.NewResolver(authClient, sessions),
		limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Identity flows
	mux.HandleFunc("GET /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/register", s.handleRegister)
	mux.HandleFunc("GET /api/callback", s.handleCallback)
	mux.HandleFunc("GET /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/me", s.handleMe)

	// Expense CRUD, always behind the hard guard
	guard := s.resolver.RequireUser
	mux.Handle("GET /api/expenses", guard(http.HandlerFunc(s.handleListExpenses)))
	mux.Handle("GET /api/expenses/total-spent", guard(http.HandlerFunc(s.handleTotalSpent)))
	mux.Handle("GET /api/expenses/{id}", guard(http.HandlerFunc(s.handleGetExpense)))
	mux.Handle("POST /api/expenses", guard(http.HandlerFunc(s.handleCreateExpense)))
	mux.Handle("PUT /api/expenses/{id}", guard(http.HandlerFunc(s.handleUpdateExpense)))
	mux.Handle("DELETE /api/expenses/{id}", guard(http.HandlerFunc(s.handleDeleteExpense)))

	var handler http.Handler = mux
	handler = s.withRequestLog(handler)
	handler = s.limiter.Middleware(clientIP)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	s.Handler = handler

	return s
}

// Shutdown stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLog logs request start and completion with a generated
// request id, warning on 4xx and erroring on 5xx.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		ip := clientIP(r)

		slog.InfoContext(r.Context(), "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, ip,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, ip)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP extracts the client address, preferring proxy headers.
// X-Forwarded-For accumulates one entry per hop; only the first is the
// client, and using the whole list would split one client across rate
// limit buckets depending on its path.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		first, _, _ := strings.Cut(ip, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
