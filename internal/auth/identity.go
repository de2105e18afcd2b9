package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"spendlog/internal/cache"
)

// Identity is the authenticated subject resolved from the session.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Resolver turns a request's cookie set into an Identity, or reports a
// definite "unauthenticated" result. Callers treat the miss as a normal
// branch; the two access policies (hard guard, soft check) both sit on
// top of CurrentUser.
type Resolver struct {
	client     *Client
	sessions   *SessionManager
	identities *cache.LRU[Identity]
}

func NewResolver(client *Client, sessions *SessionManager) *Resolver {
	return &Resolver{
		client:     client,
		sessions:   sessions,
		identities: cache.New[Identity](1024, 5*time.Minute),
	}
}

// CurrentUser resolves the identity for the request. When the access
// token has expired and a refresh token is present, one bounded refresh
// is attempted; any failure degrades to "unauthenticated" rather than
// an error.
func (rv *Resolver) CurrentUser(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	sess := rv.sessions.Session(w, r)

	idToken, ok := sess.Get(ItemIDToken)
	if !ok {
		return Identity{}, false
	}
	accessToken, ok := sess.Get(ItemAccessToken)
	if !ok {
		return Identity{}, false
	}

	if tokenExpired(accessToken) {
		refreshToken, ok := sess.Get(ItemRefreshToken)
		if !ok {
			return Identity{}, false
		}
		tok, err := rv.client.Refresh(r.Context(), refreshToken)
		if err != nil {
			slog.DebugContext(r.Context(), "Token refresh failed, treating session as absent", "error", err)
			return Identity{}, false
		}
		PersistTokens(sess, tok)
		if fresh, ok := tok.Extra("id_token").(string); ok && fresh != "" {
			idToken = fresh
		}
	}

	if ident, ok := rv.identities.Get(idToken); ok {
		return ident, true
	}
	ident, err := identityFromIDToken(idToken)
	if err != nil {
		slog.DebugContext(r.Context(), "Failed to decode id token", "error", err)
		return Identity{}, false
	}
	rv.identities.Set(idToken, ident)
	return ident, true
}

// PersistTokens writes the token set into the session. The refresh
// token is only replaced when the provider issued a new one.
func PersistTokens(sess *Session, tok *oauth2.Token) {
	sess.Set(ItemAccessToken, tok.AccessToken)
	if tok.RefreshToken != "" {
		sess.Set(ItemRefreshToken, tok.RefreshToken)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		sess.Set(ItemIDToken, idToken)
	}
}

// IdentityFromToken decodes the profile claims of an ID token freshly
// obtained from the provider. Used by the callback handler to build the
// user session item.
func IdentityFromToken(idToken string) (Identity, error) {
	return identityFromIDToken(idToken)
}

// identityFromIDToken extracts the profile claims. The token's
// signature is not re-verified here: it was obtained by this server
// directly from the provider over TLS, and its cookie carries an HMAC
// that rejects client tampering.
func identityFromIDToken(idToken string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return Identity{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, jwt.ErrTokenInvalidSubject
	}
	ident := Identity{Subject: sub}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		ident.Name = name
	}
	return ident, nil
}

// tokenExpired reports whether the token's exp claim is in the past.
// A token without an exp claim is left to the provider to reject.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque (non-JWT) access tokens carry no expiry we can read.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext returns the identity stored by RequireUser.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}

// RequireUser is the hard guard for API routes: without a valid session
// the request stops with a 401 JSON body.
func (rv *Resolver) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := rv.CurrentUser(w, r)
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// RequireUserOrRedirect is the page-flow variant of the guard: it sends
// unauthenticated browsers to the login route instead of returning 401.
func (rv *Resolver) RequireUserOrRedirect(loginPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := rv.CurrentUser(w, r)
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}
