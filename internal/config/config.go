package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for a quotefeed instance.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Poller   PollerConfig   `yaml:"poller"`
	Stream   StreamConfig   `yaml:"stream"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release or test
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	OneShotTimeout  time.Duration `yaml:"one_shot_timeout"` // Max wait for a one-shot quote
	SecureCookie    bool          `yaml:"secure_cookie"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // Websocket origins; empty allows same host only

	// Base64 keys for the credential cookie. Both empty means keys are
	// generated at startup and cookies do not survive a restart.
	CookieHashKey  string `yaml:"cookie_hash_key"`
	CookieBlockKey string `yaml:"cookie_block_key"`
}

// CookieKeys decodes the cookie keys. It returns nil keys when neither is set.
func (s ServerConfig) CookieKeys() (hashKey, blockKey []byte, err error) {
	if s.CookieHashKey == "" && s.CookieBlockKey == "" {
		return nil, nil, nil
	}
	if s.CookieHashKey == "" || s.CookieBlockKey == "" {
		return nil, nil, errors.New("server.cookie_hash_key and server.cookie_block_key must be set together")
	}

	hashKey, err = base64.StdEncoding.DecodeString(s.CookieHashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("server.cookie_hash_key: %w", err)
	}
	blockKey, err = base64.StdEncoding.DecodeString(s.CookieBlockKey)
	if err != nil {
		return nil, nil, fmt.Errorf("server.cookie_block_key: %w", err)
	}

	return hashKey, blockKey, nil
}

// UpstreamConfig holds market data / trader API settings.
type UpstreamConfig struct {
	MarketDataURL string        `yaml:"market_data_url"`
	TraderURL     string        `yaml:"trader_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// OAuthConfig holds the OAuth2 client used to refresh access tokens.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// PollerConfig holds broadcast poller settings.
type PollerConfig struct {
	BufferSize int           `yaml:"buffer_size"`
	Delay      time.Duration `yaml:"delay"`
}

// StreamConfig holds websocket connection settings.
type StreamConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadLimit    int64         `yaml:"read_limit"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
