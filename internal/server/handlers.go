package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rickgao/quotefeed/internal/apperr"
	"github.com/rickgao/quotefeed/internal/auth"
	"github.com/rickgao/quotefeed/internal/quotes"
	"github.com/rickgao/quotefeed/internal/schwab"
	"github.com/rickgao/quotefeed/internal/version"
)

// abortWithError renders e and stops the handler chain.
func abortWithError(c *gin.Context, e *apperr.Error) {
	c.Error(e)
	c.AbortWithStatusJSON(e.Status(), e)
}

// authenticate resolves the request's credential, refreshing it when
// expired. A refreshed credential is written back to the cookie.
func (s *Server) authenticate(c *gin.Context) (auth.Credentials, *apperr.Error) {
	creds, err := s.readCredentials(c)
	if err != nil {
		return auth.Credentials{}, apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err)
	}
	if creds == nil {
		return auth.Credentials{}, apperr.MissingAuth()
	}
	if !creds.IsExpired() {
		return *creds, nil
	}

	fresh, err := s.deps.Auth.Refresh(c.Request.Context(), *creds)
	if err != nil {
		return auth.Credentials{}, apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err)
	}
	s.writeCredentials(c, fresh)
	return fresh, nil
}

// parseSymbols splits a comma separated list, dropping blanks.
func parseSymbols(raw string) []string {
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		if sym := strings.TrimSpace(part); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

// handleQuotes serves one quote response for the requested symbols.
// GET /u/quotes?symbols=AAPL,MSFT
func (s *Server) handleQuotes(c *gin.Context) {
	symbols := parseSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		abortWithError(c, apperr.MissingParameters("symbols"))
		return
	}

	creds, appErr := s.authenticate(c)
	if appErr != nil {
		abortWithError(c, appErr)
		return
	}

	s.deps.Quotes.SetCredentials(creds)

	sub := s.deps.Quotes.SubscribeQuotes(symbols)
	defer sub.Close()

	ctx := c.Request.Context()
	if s.cfg.OneShotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OneShotTimeout)
		defer cancel()
	}

	res, err := awaitQuotes(ctx, sub, symbols)
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.BroadcastChannelFailure, "broadcast channel failed", err))
		return
	}
	if res.Err != nil {
		abortWithError(c, res.Err.AsError())
		return
	}

	c.JSON(http.StatusOK, res.Response)
}

// awaitQuotes returns the first result that can answer symbols. A cycle that
// took its batch before the symbols were queued cannot contain them, so one
// successful result naming none of them is skipped. The result after it is
// returned as is, since upstream omits symbols it does not know.
func awaitQuotes(ctx context.Context, sub *quotes.Subscription, symbols []string) (quotes.Result, error) {
	skipped := false
	for {
		res, err := sub.Recv(ctx)
		if err != nil {
			return quotes.Result{}, err
		}
		if res.Err != nil || skipped || containsAny(res.Response, symbols) {
			return res, nil
		}
		skipped = true
	}
}

func containsAny(resp schwab.QuoteResponse, symbols []string) bool {
	for _, sym := range symbols {
		if _, ok := resp[sym]; ok {
			return true
		}
	}
	return false
}

// handleStream upgrades to the watch-list protocol.
// GET /u/quotes/stream
func (s *Server) handleStream(c *gin.Context) {
	creds, credErr := s.readCredentials(c)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "err", err, "request_id", getRequestID(c))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.deps.Stream.Serve(ctx, conn, creds, credErr)
}

// handleUser returns the user's accounts.
// GET /u/user
func (s *Server) handleUser(c *gin.Context) {
	creds, appErr := s.authenticate(c)
	if appErr != nil {
		abortWithError(c, appErr)
		return
	}

	accounts, err := s.deps.Accounts.GetAccounts(c.Request.Context(), creds.AccessToken)
	if err != nil {
		abortWithError(c, apperr.From(err, apperr.UpstreamNetworkError))
		return
	}
	if accounts == nil {
		accounts = []schwab.Account{}
	}

	c.JSON(http.StatusOK, accounts)
}

// handleRefreshToken refreshes the credential regardless of expiry.
// POST /u/refresh_token
func (s *Server) handleRefreshToken(c *gin.Context) {
	creds, err := s.readCredentials(c)
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err))
		return
	}
	if creds == nil {
		abortWithError(c, apperr.MissingAuth())
		return
	}

	fresh, err := s.deps.Auth.Refresh(c.Request.Context(), *creds)
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err))
		return
	}
	s.writeCredentials(c, fresh)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleLogin redirects to the provider's consent page.
// GET /u/login
func (s *Server) handleLogin(c *gin.Context) {
	state := uuid.NewString()
	s.setCookie(c, stateCookieName, state, stateMaxAge)
	c.Redirect(http.StatusFound, s.deps.Auth.AuthCodeURL(state))
}

// handleCallback completes the authorization code flow.
// GET /u/callback?code=...&state=...
func (s *Server) handleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		abortWithError(c, apperr.MissingParameters("code"))
		return
	}

	want, err := c.Cookie(stateCookieName)
	if err != nil || want == "" || c.Query("state") != want {
		abortWithError(c, apperr.New(apperr.InvalidCredentialsEncoding, "oauth state mismatch"))
		return
	}
	s.clearCookie(c, stateCookieName)

	creds, err := s.deps.Auth.Exchange(c.Request.Context(), code)
	if err != nil {
		abortWithError(c, apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err))
		return
	}
	s.writeCredentials(c, creds)

	c.Redirect(http.StatusFound, "/")
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string       `json:"status"`
	Version       version.Info `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Timestamp     time.Time    `json:"timestamp"`
	Poller        pollerHealth `json:"poller"`
	Sessions      int          `json:"sessions"`
	Connections   int          `json:"connections"`
}

type pollerHealth struct {
	Running     bool       `json:"running"`
	Subscribers int        `json:"subscribers"`
	Pending     int        `json:"pending"`
	Cycles      int64      `json:"cycles"`
	LastCycle   *time.Time `json:"last_cycle,omitempty"`
	Buffer      int        `json:"buffer"`
	Sent        int64      `json:"sent"`
	Closed      bool       `json:"closed"`
}

// handleHealth reports poller and session status.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	stats := s.deps.Quotes.Stats()

	ph := pollerHealth{
		Running:     stats.Running,
		Subscribers: stats.Subscribers,
		Pending:     stats.Pending,
		Cycles:      stats.Cycles,
		Buffer:      stats.Broadcast.Capacity,
		Sent:        stats.Broadcast.TotalSent,
		Closed:      stats.Broadcast.Closed,
	}
	if !stats.LastCycle.IsZero() {
		last := stats.LastCycle
		ph.LastCycle = &last
	}

	status := "ok"
	code := http.StatusOK
	if stats.Broadcast.Closed {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, healthResponse{
		Status:        status,
		Version:       version.Get(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Timestamp:     time.Now().UTC(),
		Poller:        ph,
		Sessions:      s.deps.Stream.Sessions(),
		Connections:   s.deps.Quotes.Connections(),
	})
}
