package schwab

import (
	"log/slog"
	"net/http"
	"time"
)

// Default API roots.
const (
	DefaultMarketDataURL = "https://api.schwabapi.com/marketdata/v1"
	DefaultTraderURL     = "https://api.schwabapi.com/trader/v1"
)

// Client provides access to the market data and trader REST APIs.
type Client struct {
	marketDataURL string
	traderURL     string
	httpClient    *http.Client
	logger        *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. Empty URLs fall back to the
// production roots.
func NewClient(marketDataURL, traderURL string, opts ...ClientOption) *Client {
	if marketDataURL == "" {
		marketDataURL = DefaultMarketDataURL
	}
	if traderURL == "" {
		traderURL = DefaultTraderURL
	}

	c := &Client{
		marketDataURL: marketDataURL,
		traderURL:     traderURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// HTTPClient returns the client used when a call does not supply its own.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
