package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
  mode: debug
oauth:
  client_id: app-key
  client_secret: app-secret
  redirect_url: https://127.0.0.1/auth/callback
poller:
  buffer_size: 32
  delay: 250ms
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if cfg.OAuth.ClientID != "app-key" {
		t.Errorf("OAuth.ClientID = %q, want %q", cfg.OAuth.ClientID, "app-key")
	}
	if cfg.Poller.BufferSize != 32 {
		t.Errorf("Poller.BufferSize = %d, want 32", cfg.Poller.BufferSize)
	}
	if cfg.Poller.Delay != 250*time.Millisecond {
		t.Errorf("Poller.Delay = %v, want 250ms", cfg.Poller.Delay)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "secret123")

	yaml := `
oauth:
  client_id: app-key
  client_secret: ${TEST_CLIENT_SECRET}
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OAuth.ClientSecret != "secret123" {
		t.Errorf("OAuth.ClientSecret = %q, want %q", cfg.OAuth.ClientSecret, "secret123")
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "QUOTEFEED_TEST_DOTENV_SECRET"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	envPath := writeTempFile(t, ".env", key+"=from-dotenv\n")
	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}

	yaml := `
oauth:
  client_id: app-key
  client_secret: ${` + key + `}
`
	cfg, err := Load(writeTempFile(t, "config.yaml", yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OAuth.ClientSecret != "from-dotenv" {
		t.Errorf("OAuth.ClientSecret = %q, want %q", cfg.OAuth.ClientSecret, "from-dotenv")
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) = %v, want nil", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") = %v, want nil", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "config.yaml", "server: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
oauth:
  client_id: app-key
  client_secret: app-secret
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.OneShotTimeout != DefaultOneShotTimeout {
		t.Errorf("Server.OneShotTimeout = %v, want default %v", cfg.Server.OneShotTimeout, DefaultOneShotTimeout)
	}
	if cfg.Upstream.MarketDataURL != DefaultMarketDataURL {
		t.Errorf("Upstream.MarketDataURL = %q, want default %q", cfg.Upstream.MarketDataURL, DefaultMarketDataURL)
	}
	if cfg.OAuth.TokenURL != DefaultTokenURL {
		t.Errorf("OAuth.TokenURL = %q, want default %q", cfg.OAuth.TokenURL, DefaultTokenURL)
	}
	if cfg.Poller.BufferSize != DefaultBufferSize {
		t.Errorf("Poller.BufferSize = %d, want default %d", cfg.Poller.BufferSize, DefaultBufferSize)
	}
	if cfg.Poller.Delay != DefaultPollDelay {
		t.Errorf("Poller.Delay = %v, want default %v", cfg.Poller.Delay, DefaultPollDelay)
	}
	if cfg.Stream.ReadLimit != DefaultReadLimit {
		t.Errorf("Stream.ReadLimit = %d, want default %d", cfg.Stream.ReadLimit, DefaultReadLimit)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{OAuth: OAuthConfig{ClientID: "id", ClientSecret: "secret"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.OAuth.ClientID = "" },
			wantErr: "oauth.client_id is required",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.OAuth.ClientSecret = "" },
			wantErr: "oauth.client_secret is required",
		},
		{
			name:    "bad server mode",
			mutate:  func(c *Config) { c.Server.Mode = "prod" },
			wantErr: `server.mode must be debug, release or test, got "prod"`,
		},
		{
			name: "cookie keys",
			mutate: func(c *Config) {
				c.Server.CookieHashKey = b64(64)
				c.Server.CookieBlockKey = b64(32)
			},
		},
		{
			name:    "cookie hash key alone",
			mutate:  func(c *Config) { c.Server.CookieHashKey = b64(64) },
			wantErr: "server.cookie_hash_key and server.cookie_block_key must be set together",
		},
		{
			name: "short cookie hash key",
			mutate: func(c *Config) {
				c.Server.CookieHashKey = b64(16)
				c.Server.CookieBlockKey = b64(32)
			},
			wantErr: "server.cookie_hash_key must decode to at least 32 bytes, got 16",
		},
		{
			name: "bad cookie block key",
			mutate: func(c *Config) {
				c.Server.CookieHashKey = b64(32)
				c.Server.CookieBlockKey = b64(20)
			},
			wantErr: "server.cookie_block_key must decode to 16, 24 or 32 bytes, got 20",
		},
		{
			name:    "zero buffer",
			mutate:  func(c *Config) { c.Poller.BufferSize = 0 },
			wantErr: "poller.buffer_size must be >= 1",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Poller.Delay = -time.Second },
			wantErr: "poller.delay must be >= 0",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Upstream.MaxRetries = -1 },
			wantErr: "upstream.max_retries must be >= 0",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be debug, info, warn or error, got "trace"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func b64(n int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, n))
}

func TestServerConfig_CookieKeys(t *testing.T) {
	var empty ServerConfig
	hashKey, blockKey, err := empty.CookieKeys()
	if err != nil || hashKey != nil || blockKey != nil {
		t.Errorf("CookieKeys() = %v, %v, %v; want nil keys", hashKey, blockKey, err)
	}

	cfg := ServerConfig{CookieHashKey: b64(64), CookieBlockKey: b64(16)}
	hashKey, blockKey, err = cfg.CookieKeys()
	if err != nil {
		t.Fatalf("CookieKeys() unexpected error: %v", err)
	}
	if len(hashKey) != 64 || len(blockKey) != 16 {
		t.Errorf("key lengths = %d, %d; want 64, 16", len(hashKey), len(blockKey))
	}

	cfg.CookieBlockKey = "not base64!"
	if _, _, err := cfg.CookieKeys(); err == nil {
		t.Error("CookieKeys() expected error for invalid base64")
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "server:\n  addr: \":8081\"\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("expected validation error for missing oauth client")
	}

	path = writeTempFile(t, "config.yaml", "oauth:\n  client_id: a\n  client_secret: b\n")
	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Server.Mode != DefaultServerMode {
		t.Errorf("Server.Mode = %q, want %q", cfg.Server.Mode, DefaultServerMode)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
