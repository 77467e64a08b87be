package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges a refresh token for a new access token.
//
//go:generate mockgen -package=authmock -destination=authmock/refresher.go -source=refresh.go Refresher
type Refresher interface {
	Refresh(ctx context.Context, c Credentials) (Credentials, error)
}

// OAuthConfig holds the provider endpoints and client identity.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// OAuthRefresher refreshes credentials against an OAuth2 token endpoint.
// Concurrent refreshes of the same refresh token share one request.
type OAuthRefresher struct {
	conf       *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger

	group singleflight.Group
}

// NewOAuthRefresher creates a refresher. A nil httpClient uses
// http.DefaultClient; a nil logger uses slog.Default().
func NewOAuthRefresher(cfg OAuthConfig, httpClient *http.Client, logger *slog.Logger) *OAuthRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthRefresher{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// Refresh returns fresh credentials for c. The refresh token is kept when the
// provider does not rotate it.
func (r *OAuthRefresher) Refresh(ctx context.Context, c Credentials) (Credentials, error) {
	if c.RefreshToken == "" {
		return Credentials{}, ErrNoRefreshToken
	}

	v, err, shared := r.group.Do(c.RefreshToken, func() (any, error) {
		if r.httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
		}

		// An already-expired token forces the source to hit the token endpoint.
		stale := c.Token()
		stale.Expiry = time.Unix(1, 0)

		tok, err := r.conf.TokenSource(ctx, stale).Token()
		if err != nil {
			return nil, err
		}
		return tok, nil
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("refresh access token: %w", err)
	}

	fresh := FromToken(v.(*oauth2.Token))
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = c.RefreshToken
	}

	r.logger.Debug("access token refreshed",
		"expires_at", fresh.ExpiresAt,
		"shared", shared,
	)

	return fresh, nil
}

// EnsureFresh refreshes c through r when it is expired and returns the
// credentials to use.
func EnsureFresh(ctx context.Context, r Refresher, c Credentials) (Credentials, error) {
	if !c.IsExpired() {
		return c, nil
	}
	return r.Refresh(ctx, c)
}

// AuthCodeURL returns the provider's consent page URL for state.
func (r *OAuthRefresher) AuthCodeURL(state string) string {
	return r.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for credentials.
func (r *OAuthRefresher) Exchange(ctx context.Context, code string) (Credentials, error) {
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	tok, err := r.conf.Exchange(ctx, code)
	if err != nil {
		return Credentials{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	r.logger.Info("user authorized", "expires_at", tok.Expiry)
	return FromToken(tok), nil
}
