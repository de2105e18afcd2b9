package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"spendlog/internal/auth"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.sessions.Session(w, r).Set(auth.ItemState, state)
	http.Redirect(w, r, s.authClient.LoginURL(state), http.StatusFound)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.sessions.Session(w, r).Set(auth.ItemState, state)
	http.Redirect(w, r, s.authClient.RegisterURL(state), http.StatusFound)
}

// handleCallback finishes the authorization-code flow. Every failure
// here is a request-level failure: it logs, redirects back to the
// login flow, and never takes the process down.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session(w, r)
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		slog.WarnContext(r.Context(), "Identity provider returned an error",
			"provider_error", provErr)
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}

	wantState, ok := sess.Get(auth.ItemState)
	if !ok || query.Get("state") != wantState {
		slog.WarnContext(r.Context(), "Callback state mismatch")
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		slog.WarnContext(r.Context(), "Callback without authorization code")
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}

	tok, err := s.authClient.Exchange(r.Context(), code)
	if err != nil {
		slog.ErrorContext(r.Context(), "Authorization code exchange failed", "error", err)
		http.Redirect(w, r, "/api/login", http.StatusFound)
		return
	}

	auth.PersistTokens(sess, tok)
	sess.Remove(auth.ItemState)

	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		if ident, err := auth.IdentityFromToken(idToken); err == nil {
			if profile, err := json.Marshal(ident); err == nil {
				sess.Set(auth.ItemUser, string(profile))
			}
			slog.InfoContext(r.Context(), "User logged in", "user_id", ident.Subject)
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Session(w, r).Destroy()
	http.Redirect(w, r, s.authClient.LogoutURL(), http.StatusFound)
}

// handleMe is the soft check: it always answers 200 and reports the
// session state instead of blocking the request.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.resolver.CurrentUser(w, r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"isAuthenticated": false,
			"message":         "user is not authenticated",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            ident,
	})
}
