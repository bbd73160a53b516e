package oauth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
)

// Config describes a platform's OAuth endpoints and client registration.
type Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// Validate ensures the flow can be started.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("oauth client_id is required")
	case c.AuthURL == "":
		return fmt.Errorf("oauth auth_url is required")
	case c.TokenURL == "":
		return fmt.Errorf("oauth token_url is required")
	}
	return nil
}

// Client performs the authorization-code exchange and the refresh grant.
type Client struct {
	conf oauth2.Config
	http *http.Client
}

// NewClient builds a client. httpClient may be nil to use the default.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: cfg.Scopes,
		},
		http: httpClient,
	}
}

// AuthCodeURL returns the authorization page URL for one flow.
func (c *Client) AuthCodeURL(redirectURI, state string) string {
	conf := c.conf
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (adapter.Credentials, error) {
	conf := c.conf
	conf.RedirectURL = redirectURI
	tok, err := conf.Exchange(c.context(ctx), code)
	if err != nil {
		return adapter.Credentials{}, fmt.Errorf("token exchange failed: %w", err)
	}
	return credentialsOf(tok), nil
}

// Refresh runs the refresh-token grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (adapter.Credentials, error) {
	src := c.conf.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return adapter.Credentials{}, fmt.Errorf("refresh grant failed: %w", err)
	}
	return credentialsOf(tok), nil
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.http == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// userIDFields are the token response fields platforms use for the account.
var userIDFields = []string{"user_id", "account_id", "xuid"}

func credentialsOf(tok *oauth2.Token) adapter.Credentials {
	creds := adapter.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	for _, field := range userIDFields {
		if id, ok := tok.Extra(field).(string); ok && id != "" {
			creds.UserID = id
			break
		}
	}
	return creds
}
