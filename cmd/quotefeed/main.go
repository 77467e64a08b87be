package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotefeed/internal/auth"
	"github.com/rickgao/quotefeed/internal/config"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/quotes"
	"github.com/rickgao/quotefeed/internal/schwab"
	"github.com/rickgao/quotefeed/internal/server"
	"github.com/rickgao/quotefeed/internal/version"
	"github.com/rickgao/quotefeed/internal/watch"
)

func main() {
	configPath := flag.String("config", "configs/quotefeed.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to dotenv file (optional)")
	flag.Parse()

	// Bootstrap logger until the configured one is available
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(*envPath); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting quotefeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("quotefeed failed", "error", err)
		os.Exit(1)
	}

	logger.Info("quotefeed stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client := schwab.NewClient(
		cfg.Upstream.MarketDataURL,
		cfg.Upstream.TraderURL,
		schwab.WithLogger(logger),
		schwab.WithTimeout(cfg.Upstream.Timeout),
		schwab.WithRetries(cfg.Upstream.MaxRetries, cfg.Upstream.RetryBackoff),
	)

	oauth := auth.NewOAuthRefresher(auth.OAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Scopes:       cfg.OAuth.Scopes,
	}, client.HTTPClient(), logger)

	service := quotes.NewService(poller.Config{
		BufferSize: cfg.Poller.BufferSize,
		Delay:      cfg.Poller.Delay,
		HTTPClient: client.HTTPClient(),
	}, client, logger)

	stream := watch.NewHandler(watch.Config{
		WriteTimeout: cfg.Stream.WriteTimeout,
		ReadLimit:    cfg.Stream.ReadLimit,
	}, service, oauth, logger)

	cookies, err := newCookieCodec(cfg.Server, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, server.Deps{
		Quotes:   service,
		Accounts: client,
		Auth:     oauth,
		Stream:   stream,
		Cookies:  cookies,
	}, logger)

	logger.Info("quotefeed running",
		"addr", cfg.Server.Addr,
		"poll_delay", cfg.Poller.Delay,
		"buffer_size", cfg.Poller.BufferSize,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return service.Stop(shutdownCtx)
	})

	return g.Wait()
}

// newLogger builds the slog logger selected by cfg.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newCookieCodec builds the credential cookie codec from the configured
// keys, generating random ones when none are set.
func newCookieCodec(cfg config.ServerConfig, logger *slog.Logger) (*auth.CookieCodec, error) {
	hashKey, blockKey, err := cfg.CookieKeys()
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		logger.Warn("cookie keys not configured, generating random keys; credential cookies will not survive a restart")
		hashKey, blockKey = auth.GenerateCookieKeys()
	}

	codec, err := auth.NewCookieCodec(hashKey, blockKey)
	if err != nil {
		return nil, fmt.Errorf("cookie codec: %w", err)
	}
	return codec, nil
}
