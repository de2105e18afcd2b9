package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"spendlog/internal/config"
)

// exchangeTimeout bounds every round trip to the identity provider.
// A slow provider fails the single request, never the process.
const exchangeTimeout = 10 * time.Second

// Client talks the OAuth2 authorization-code flow with the identity
// provider. It owns no session state; handlers combine it with a
// Session to persist tokens.
type Client struct {
	oauth             oauth2.Config
	domain            string
	logoutRedirectURL string
}

func NewClient(cfg *config.Config) *Client {
	domain := strings.TrimSuffix(cfg.AuthDomain, "/")
	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.AuthClientID,
			ClientSecret: cfg.AuthClientSecret,
			RedirectURL:  cfg.AuthRedirectURL,
			Scopes:       []string{"openid", "profile", "email", "offline"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  domain + "/oauth2/auth",
				TokenURL: domain + "/oauth2/token",
			},
		},
		domain:            domain,
		logoutRedirectURL: cfg.AuthLogoutRedirectURL,
	}
}

// LoginURL returns the provider's authorization endpoint for the given
// state nonce.
func (c *Client) LoginURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// RegisterURL is the registration variant of the same flow.
func (c *Client) RegisterURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "create"))
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// Refresh obtains fresh tokens from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}

// LogoutURL returns the provider's logout endpoint, which redirects the
// browser back to the application afterwards.
func (c *Client) LogoutURL() string {
	return c.domain + "/logout?redirect=" + url.QueryEscape(c.logoutRedirectURL)
}
