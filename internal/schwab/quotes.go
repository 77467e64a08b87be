package schwab

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GetQuotes fetches quotes for symbols with the given access token. A nil hc
// uses the client's own HTTP client.
func (c *Client) GetQuotes(ctx context.Context, hc *http.Client, accessToken string, symbols []string) (QuoteResponse, error) {
	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("fields", QuoteFields)
	query.Set("indicative", "false")

	var resp QuoteResponse
	err := c.get(ctx, "get quotes", request{
		hc:    hc,
		url:   c.marketDataURL + "/quotes",
		token: accessToken,
		query: query,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		resp = QuoteResponse{}
	}
	return resp, nil
}

// GetAccounts returns the accounts listed in the user's preferences.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var resp UserPreferenceResponse
	err := c.get(ctx, "get user preference", request{
		url:   c.traderURL + "/userPreference",
		token: accessToken,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Accounts == nil {
		resp.Accounts = []Account{}
	}
	return resp.Accounts, nil
}
