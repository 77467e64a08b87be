// Package schwab is the REST client for the upstream brokerage APIs.
//
// Endpoints:
//   - Market data: https://api.schwabapi.com/marketdata/v1 (GET /quotes)
//   - Trader: https://api.schwabapi.com/trader/v1 (GET /userPreference)
//
// Every call authenticates with the caller's bearer access token. Quote
// payloads are passed through opaquely as one raw JSON object per symbol.
package schwab
