package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all externally supplied settings. Nothing here has a
// hard-coded production value; secrets come from the environment only.
type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Identity provider (OAuth2 authorization-code flow)
	AuthDomain            string
	AuthClientID          string
	AuthClientSecret      string
	AuthRedirectURL       string
	AuthLogoutRedirectURL string

	// Session cookies
	CookieSecret string
	CookieSecure bool
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendlog.db"),

		AuthDomain:            getEnv("AUTH_DOMAIN", ""),
		AuthClientID:          getEnv("AUTH_CLIENT_ID", ""),
		AuthClientSecret:      getEnv("AUTH_CLIENT_SECRET", ""),
		AuthRedirectURL:       getEnv("AUTH_REDIRECT_URL", ""),
		AuthLogoutRedirectURL: getEnv("AUTH_LOGOUT_REDIRECT_URL", ""),

		CookieSecret: getEnv("COOKIE_SECRET", ""),
		CookieSecure: getEnvBool("COOKIE_SECURE", true),
	}
}

// Validate checks the configuration and returns a single error naming
// every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AuthDomain == "" {
		errs = append(errs, "AUTH_DOMAIN is required")
	} else if u, err := url.Parse(c.AuthDomain); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid AUTH_DOMAIN '%s': must be an http(s) URL", c.AuthDomain))
	}
	if c.AuthClientID == "" {
		errs = append(errs, "AUTH_CLIENT_ID is required")
	}
	if c.AuthClientSecret == "" {
		errs = append(errs, "AUTH_CLIENT_SECRET is required")
	}
	for name, v := range map[string]string{
		"AUTH_REDIRECT_URL":        c.AuthRedirectURL,
		"AUTH_LOGOUT_REDIRECT_URL": c.AuthLogoutRedirectURL,
	} {
		if v == "" {
			errs = append(errs, name+" is required")
			continue
		}
		if _, err := url.Parse(v); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s '%s': %v", name, v, err))
		}
	}

	if len(c.CookieSecret) < 32 {
		errs = append(errs, "COOKIE_SECRET must be at least 32 bytes")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
