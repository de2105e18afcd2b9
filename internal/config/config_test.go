package config

import (
	"strings"
	"testing"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8081")
	t.Setenv("SQLITE_DB_PATH", t.TempDir()+"/test.db")
	t.Setenv("AUTH_DOMAIN", "https://idp.example.com")
	t.Setenv("AUTH_CLIENT_ID", "client-id")
	t.Setenv("AUTH_CLIENT_SECRET", "client-secret")
	t.Setenv("AUTH_REDIRECT_URL", "http://localhost:8081/api/callback")
	t.Setenv("AUTH_LOGOUT_REDIRECT_URL", "http://localhost:8081/")
	t.Setenv("COOKIE_SECRET", strings.Repeat("s", 32))
}

func TestLoadAndValidate(t *testing.T) {
	validEnv(t)

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid configuration rejected: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = "http" },
			wantMsg: "invalid port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = "70000" },
			wantMsg: "must be between",
		},
		{
			name:    "missing auth domain",
			mutate:  func(c *Config) { c.AuthDomain = "" },
			wantMsg: "AUTH_DOMAIN is required",
		},
		{
			name:    "auth domain without scheme",
			mutate:  func(c *Config) { c.AuthDomain = "idp.example.com" },
			wantMsg: "must be an http(s) URL",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.AuthClientSecret = "" },
			wantMsg: "AUTH_CLIENT_SECRET is required",
		},
		{
			name:    "short cookie secret",
			mutate:  func(c *Config) { c.CookieSecret = "short" },
			wantMsg: "COOKIE_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	validEnv(t)
	cfg := Load()
	cfg.Port = "bad"
	cfg.AuthClientID = ""
	cfg.CookieSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"invalid port", "AUTH_CLIENT_ID", "COOKIE_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error should mention %q, got: %v", want, err)
		}
	}
}
