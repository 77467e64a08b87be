package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/quotefeed/internal/auth"
)

const (
	// stateCookieName carries the OAuth state between login and callback.
	stateCookieName = "quotefeed_oauth_state"
	stateMaxAge     = 10 * time.Minute
)

// readCredentials verifies and returns the credential cookie. Both results
// are nil when the request has no cookie.
func (s *Server) readCredentials(c *gin.Context) (*auth.Credentials, error) {
	raw, err := c.Cookie(auth.CookieName)
	if err != nil {
		return nil, nil
	}
	creds, err := s.deps.Cookies.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

func (s *Server) writeCredentials(c *gin.Context, creds auth.Credentials) {
	value, err := s.deps.Cookies.Encode(creds)
	if err != nil {
		s.logger.Error("encode credential cookie", "err", err, "request_id", getRequestID(c))
		return
	}
	s.setCookie(c, auth.CookieName, value, auth.CookieMaxAge)
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(maxAge.Seconds()), "/", "", s.cfg.SecureCookie, true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.cfg.SecureCookie, true)
}
