package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
)

// Key sizes used by GenerateCookieKeys. The block key selects AES-256.
const (
	HashKeySize  = 64
	BlockKeySize = 32
)

// CookieMaxAge matches the provider's refresh token lifetime. Older cookies
// fail verification.
const CookieMaxAge = 7 * 24 * time.Hour

// ErrCookieKey is returned for unusable cookie keys.
var ErrCookieKey = errors.New("invalid cookie key")

// CookieCodec signs and encrypts credentials for the cookie.
type CookieCodec struct {
	sc *securecookie.SecureCookie
}

// NewCookieCodec creates a codec. hashKey authenticates the value and must
// be at least 32 bytes; blockKey encrypts it and must be 16, 24 or 32 bytes.
func NewCookieCodec(hashKey, blockKey []byte) (*CookieCodec, error) {
	if len(hashKey) < 32 {
		return nil, fmt.Errorf("%w: hash key must be at least 32 bytes, got %d", ErrCookieKey, len(hashKey))
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes, got %d", ErrCookieKey, len(blockKey))
	}

	sc := securecookie.New(hashKey, blockKey).
		SetSerializer(securecookie.JSONEncoder{}).
		MaxAge(int(CookieMaxAge.Seconds()))

	return &CookieCodec{sc: sc}, nil
}

// GenerateCookieKeys returns random hash and block keys.
func GenerateCookieKeys() (hashKey, blockKey []byte) {
	return securecookie.GenerateRandomKey(HashKeySize), securecookie.GenerateRandomKey(BlockKeySize)
}

// Encode returns the signed, encrypted cookie value for c.
func (cc *CookieCodec) Encode(c Credentials) (string, error) {
	value, err := cc.sc.Encode(CookieName, c)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	return value, nil
}

// Decode verifies and decrypts a cookie value produced by Encode.
func (cc *CookieCodec) Decode(value string) (Credentials, error) {
	if value == "" {
		return Credentials{}, ErrEmptyCredentials
	}

	var c Credentials
	if err := cc.sc.Decode(CookieName, value, &c); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		return Credentials{}, ErrEmptyCredentials
	}

	return c, nil
}
