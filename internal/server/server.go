package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rickgao/quotefeed/internal/auth"
	"github.com/rickgao/quotefeed/internal/config"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/quotes"
	"github.com/rickgao/quotefeed/internal/schwab"
	"github.com/rickgao/quotefeed/internal/watch"
)

// QuoteService is the quote service as used by the HTTP handlers.
type QuoteService interface {
	SetCredentials(c auth.Credentials)
	SubscribeQuotes(symbols []string) *quotes.Subscription
	Connections() int
	Stats() poller.Stats
}

// Accounts lists the user's brokerage accounts.
type Accounts interface {
	GetAccounts(ctx context.Context, accessToken string) ([]schwab.Account, error)
}

// Authorizer runs the OAuth flows.
type Authorizer interface {
	auth.Refresher
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Credentials, error)
}

// StreamHandler serves upgraded websocket connections.
type StreamHandler interface {
	Serve(ctx context.Context, conn watch.Conn, creds *auth.Credentials, credErr error)
	Sessions() int
}

// CredentialCodec converts credentials to and from the cookie value.
type CredentialCodec interface {
	Encode(c auth.Credentials) (string, error)
	Decode(value string) (auth.Credentials, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Quotes   QuoteService
	Accounts Accounts
	Auth     Authorizer
	Stream   StreamHandler
	Cookies  CredentialCodec
}

// Server owns the gin engine and the HTTP listener.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	logger   *slog.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
	started  time.Time

	// ctx outlives individual requests and is cancelled on shutdown so that
	// hijacked websocket connections end too.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server and registers its routes.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		engine:  gin.New(),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.setupMiddlewares()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddlewares() {
	s.engine.Use(recovery(s.logger))
	s.engine.Use(requestID())
	s.engine.Use(logging(s.logger, "/health"))
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	u := s.engine.Group("/u")
	{
		u.GET("/login", s.handleLogin)
		u.GET("/callback", s.handleCallback)
		u.GET("/user", s.handleUser)
		u.POST("/refresh_token", s.handleRefreshToken)
		u.GET("/quotes", s.handleQuotes)
		u.GET("/quotes/stream", s.handleStream)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// checkOrigin allows the configured origins. With none configured it falls
// back to gorilla's same-host check.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		return sameOrigin(r)
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// sameOrigin reports whether the Origin header names the request host.
func sameOrigin(r *http.Request) bool {
	u, err := url.Parse(r.Header.Get("Origin"))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.cancel()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	s.cancel()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close ends all websocket sessions started through this server.
func (s *Server) Close() {
	s.cancel()
}
