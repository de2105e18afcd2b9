// Package auth maps inbound requests to an authenticated identity.
//
// Tokens issued by the identity provider live in HMAC-signed, http-only,
// secure cookies. The session is a set of named values with get, set,
// remove and destroy operations; nothing is ever written to query
// strings or client-readable storage.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// Named session items. Destroy removes exactly this set.
const (
	ItemIDToken      = "id_token"
	ItemAccessToken  = "access_token"
	ItemUser         = "user"
	ItemRefreshToken = "refresh_token"
	ItemState        = "oauth_state"
)

var sessionItems = []string{ItemIDToken, ItemAccessToken, ItemUser, ItemRefreshToken, ItemState}

// SessionManager issues per-request Session views over the cookie set.
type SessionManager struct {
	secret []byte
	secure bool
}

func NewSessionManager(secret string, secure bool) *SessionManager {
	return &SessionManager{secret: []byte(secret), secure: secure}
}

// Session reads and mutates the named values of one request. All writes
// go through signed cookie set/delete.
type Session struct {
	m *SessionManager
	w http.ResponseWriter
	r *http.Request
}

func (m *SessionManager) Session(w http.ResponseWriter, r *http.Request) *Session {
	return &Session{m: m, w: w, r: r}
}

// Get returns the named value if the cookie exists and its signature
// verifies. A missing or tampered cookie is a normal miss, not an error.
func (s *Session) Get(key string) (string, bool) {
	cookie, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return s.m.verify(key, cookie.Value)
}

// Set stores the named value as a signed cookie.
func (s *Session) Set(key, value string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    s.m.sign(key, value),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Remove deletes the named value.
func (s *Session) Remove(key string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Destroy removes every named session item.
func (s *Session) Destroy() {
	for _, key := range sessionItems {
		s.Remove(key)
	}
}

// sign encodes value and appends an HMAC over name and value, so a
// signed value cannot be replayed under a different cookie name.
func (m *SessionManager) sign(name, value string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(value))
	return encoded + "." + m.mac(name, encoded)
}

func (m *SessionManager) verify(name, signed string) (string, bool) {
	encoded, sig, found := strings.Cut(signed, ".")
	if !found {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(name, encoded))) {
		return "", false
	}
	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(value), true
}

func (m *SessionManager) mac(name, encoded string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
