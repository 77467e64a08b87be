package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8080"
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultOneShotTimeout  = 10 * time.Second
	DefaultMarketDataURL   = "https://api.schwabapi.com/marketdata/v1"
	DefaultTraderURL       = "https://api.schwabapi.com/trader/v1"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxRetries      = 1
	DefaultRetryBackoff    = 200 * time.Millisecond
	DefaultAuthURL         = "https://api.schwabapi.com/v1/oauth/authorize"
	DefaultTokenURL        = "https://api.schwabapi.com/v1/oauth/token"
	DefaultBufferSize      = 16
	DefaultPollDelay       = 500 * time.Millisecond
	DefaultWriteTimeout    = 10 * time.Second
	DefaultReadLimit       = 64 * 1024
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Mode == "" {
		c.Server.Mode = DefaultServerMode
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.OneShotTimeout == 0 {
		c.Server.OneShotTimeout = DefaultOneShotTimeout
	}

	// Upstream defaults
	if c.Upstream.MarketDataURL == "" {
		c.Upstream.MarketDataURL = DefaultMarketDataURL
	}
	if c.Upstream.TraderURL == "" {
		c.Upstream.TraderURL = DefaultTraderURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = DefaultMaxRetries
	}
	if c.Upstream.RetryBackoff == 0 {
		c.Upstream.RetryBackoff = DefaultRetryBackoff
	}

	// OAuth defaults
	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = DefaultAuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultTokenURL
	}

	// Poller defaults
	if c.Poller.BufferSize == 0 {
		c.Poller.BufferSize = DefaultBufferSize
	}
	if c.Poller.Delay == 0 {
		c.Poller.Delay = DefaultPollDelay
	}

	// Stream defaults
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReadLimit == 0 {
		c.Stream.ReadLimit = DefaultReadLimit
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
