// Package auth holds the user's upstream OAuth credentials: the signed and
// encrypted cookie form, expiry checks and refresh-token exchange.
package auth

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// CookieName is the cookie carrying the encoded credentials.
const CookieName = "quotefeed_auth"

// expirySkew treats a token as expired slightly before its real expiry so a
// request started just before the deadline does not fail upstream.
const expirySkew = 10 * time.Second

// Errors
var (
	ErrEmptyCredentials = errors.New("empty credentials")
	ErrNoRefreshToken   = errors.New("credentials have no refresh token")
)

// Credentials is a single user's OAuth token set.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FromToken converts an oauth2 token.
func FromToken(tok *oauth2.Token) Credentials {
	return Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// Token converts back to an oauth2 token.
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.ExpiresAt,
	}
}

// IsExpired reports whether the access token should be refreshed before use.
func (c Credentials) IsExpired() bool {
	return c.IsExpiredAt(time.Now())
}

// IsExpiredAt is IsExpired against an explicit clock.
func (c Credentials) IsExpiredAt(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(c.ExpiresAt)
}
