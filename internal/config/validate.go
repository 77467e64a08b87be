package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !slices.Contains([]string{"debug", "release", "test"}, c.Server.Mode) {
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.OneShotTimeout < 0 {
		return errors.New("server.one_shot_timeout must be >= 0")
	}
	hashKey, blockKey, err := c.Server.CookieKeys()
	if err != nil {
		return err
	}
	if hashKey != nil {
		if len(hashKey) < 32 {
			return fmt.Errorf("server.cookie_hash_key must decode to at least 32 bytes, got %d", len(hashKey))
		}
		if n := len(blockKey); n != 16 && n != 24 && n != 32 {
			return fmt.Errorf("server.cookie_block_key must decode to 16, 24 or 32 bytes, got %d", n)
		}
	}

	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must be >= 0")
	}

	if c.OAuth.ClientID == "" {
		return errors.New("oauth.client_id is required")
	}
	if c.OAuth.ClientSecret == "" {
		return errors.New("oauth.client_secret is required")
	}
	if c.OAuth.TokenURL == "" {
		return errors.New("oauth.token_url is required")
	}

	if c.Poller.BufferSize < 1 {
		return errors.New("poller.buffer_size must be >= 1")
	}
	if c.Poller.Delay < 0 {
		return errors.New("poller.delay must be >= 0")
	}

	if c.Stream.ReadLimit < 1 {
		return errors.New("stream.read_limit must be >= 1")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}
