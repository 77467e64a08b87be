package schwab

import "encoding/json"

// QuoteFields is the field selection requested for every quote.
const QuoteFields = "quote,fundamental,extended,reference,regular"

// QuoteResponse maps each requested symbol to its quote object. Symbols the
// upstream does not recognise may be absent or carry an error object; either
// way the payload is relayed untouched.
type QuoteResponse map[string]json.RawMessage

// Symbols returns the keys of the response.
func (r QuoteResponse) Symbols() []string {
	symbols := make([]string, 0, len(r))
	for s := range r {
		symbols = append(symbols, s)
	}
	return symbols
}

// UserPreferenceResponse from GET /userPreference
type UserPreferenceResponse struct {
	Accounts []Account `json:"accounts"`
}

// Account is one brokerage account of the authenticated user.
type Account struct {
	AccountNumber      string `json:"accountNumber"`
	PrimaryAccount     bool   `json:"primaryAccount"`
	Type               string `json:"type"`
	NickName           string `json:"nickName"`
	DisplayAcctID      string `json:"displayAcctId"`
	AutoPositionEffect bool   `json:"autoPositionEffect"`
	AccountColor       string `json:"accountColor"`
	LotSelectionMethod string `json:"lotSelectionMethod"`
	HasFuturesAccount  bool   `json:"hasFuturesAccount"`
	HasForexAccount    bool   `json:"hasForexAccount"`
}
