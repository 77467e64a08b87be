package quotes

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/rickgao/quotefeed/internal/apperr"
	"github.com/rickgao/quotefeed/internal/auth"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/schwab"
)

// Upstream fetches quotes from the market data API.
//
//go:generate mockgen -package=quotesmock -destination=quotesmock/upstream.go -source=service.go Upstream
type Upstream interface {
	GetQuotes(ctx context.Context, hc *http.Client, accessToken string, symbols []string) (schwab.QuoteResponse, error)
}

// Result is the outcome of one poll cycle. Exactly one of Response and Err
// is meaningful; Err is shared by every subscriber of the cycle.
type Result struct {
	Response schwab.QuoteResponse
	Err      *apperr.Shared
}

// Subscription receives Results.
type Subscription = poller.Subscription[Result, string]

// Service distributes quotes from a single poll loop.
//
// Lock order: pushMu before the poller's pending lock, and either before the
// demand lock. The credential cell is never held while taking any of them.
type Service struct {
	poller   *poller.Poller[Result, string]
	upstream Upstream
	creds    CredentialCell
	demand   *Demand
	logger   *slog.Logger

	pushMu sync.Mutex
}

// NewService creates a new Service.
func NewService(cfg poller.Config, upstream Upstream, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		upstream: upstream,
		demand:   NewDemand(),
		logger:   logger,
	}
	s.poller = poller.New[Result, string](cfg, cycleFetcher{s}, logger)
	return s
}

// cycleFetcher binds the service to the poller. Reset forgets one-shot
// demand when the loop is torn down.
type cycleFetcher struct {
	s *Service
}

func (f cycleFetcher) Fetch(ctx context.Context, hc *http.Client, batch []string) Result {
	return f.s.fetch(ctx, hc, batch)
}

func (f cycleFetcher) Reset() {
	f.s.demand.ClearOnce()
}

// fetch runs one poll cycle.
func (s *Service) fetch(ctx context.Context, hc *http.Client, batch []string) Result {
	creds, ok := s.creds.Get()
	if !ok {
		panic("quotes: poll cycle started without credentials")
	}

	s.demand.Consume(batch)

	if len(batch) == 0 {
		return Result{Response: schwab.QuoteResponse{}}
	}

	resp, err := s.upstream.GetQuotes(ctx, hc, creds.AccessToken, batch)
	if err != nil {
		shared := apperr.Share(apperr.From(err, apperr.UpstreamNetworkError))
		s.logger.Warn("quote fetch failed",
			"symbols", len(batch),
			"err", shared.Cause(),
		)
		return Result{Err: shared}
	}

	return Result{Response: resp}
}

// SetCredentials installs the credential used by subsequent poll cycles.
func (s *Service) SetCredentials(c auth.Credentials) {
	s.creds.Set(c)
}

// Credentials returns the installed credential.
func (s *Service) Credentials() (auth.Credentials, bool) {
	return s.creds.Get()
}

// SetQuotes replaces the pending symbol set.
func (s *Service) SetQuotes(symbols []string) {
	s.poller.SetState(symbols)
}

// ExtendQuotes adds symbols to the pending set and keeps them in demand
// until a cycle fetches them.
func (s *Service) ExtendQuotes(symbols []string) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.demand.AddOnce(symbols)
	s.poller.ExtendUnique(symbols)
}

// SetConnectionQuotes records the watch-list of connID and pushes the union
// of all demand.
func (s *Service) SetConnectionQuotes(connID string, symbols []string) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.demand.Set(connID, symbols)
	s.poller.SetState(s.demand.Union())
}

// Release forgets connID's watch-list and pushes the remaining demand.
func (s *Service) Release(connID string) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.demand.Remove(connID)
	s.poller.SetState(s.demand.Union())
}

// Subscribe attaches a subscriber to the poll loop.
func (s *Service) Subscribe() *Subscription {
	return s.poller.Subscribe()
}

// SubscribeQuotes attaches a subscriber and then queues symbols for one
// fetch. The subscription voids any teardown scheduled before it, so the
// queued symbols reach the next cycle that takes its batch after this call.
// The first result may come from a cycle already in flight and lack them.
func (s *Service) SubscribeQuotes(symbols []string) *Subscription {
	sub := s.poller.Subscribe()
	s.ExtendQuotes(symbols)
	return sub
}

// Pending returns the symbols queued for the next cycle.
func (s *Service) Pending() []string {
	return s.poller.Pending()
}

// Connections returns the number of connections with a recorded watch-list.
func (s *Service) Connections() int {
	return s.demand.Connections()
}

// Stats returns poller statistics.
func (s *Service) Stats() poller.Stats {
	return s.poller.Stats()
}

// Stop shuts down the poll loop.
func (s *Service) Stop(ctx context.Context) error {
	return s.poller.Stop(ctx)
}
