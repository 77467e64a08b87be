package watch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/quotefeed/internal/apperr"
	"github.com/rickgao/quotefeed/internal/auth"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/quotes"
)

// Conn is the part of *websocket.Conn the handler uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Quotes is the quote service as seen by a connection.
type Quotes interface {
	SetCredentials(c auth.Credentials)
	SetConnectionQuotes(connID string, symbols []string)
	Release(connID string)
	Subscribe() *quotes.Subscription
}

// State is a connection's protocol state.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateLooping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateLooping:
		return "looping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds per-connection settings.
type Config struct {
	WriteTimeout time.Duration // Deadline for each outbound frame (default: 10s)
	ReadLimit    int64         // Max inbound frame size in bytes (default: 64KiB)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		ReadLimit:    64 * 1024,
	}
}

// Handler serves the watch-list protocol on upgraded connections.
type Handler struct {
	cfg       Config
	quotes    Quotes
	refresher auth.Refresher
	logger    *slog.Logger

	sessions atomic.Int64
}

// NewHandler creates a new Handler.
func NewHandler(cfg Config, q Quotes, refresher auth.Refresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}
	return &Handler{
		cfg:       cfg,
		quotes:    q,
		refresher: refresher,
		logger:    logger,
	}
}

// Sessions returns the number of connections currently being served.
func (h *Handler) Sessions() int {
	return int(h.sessions.Load())
}

// Serve runs the protocol on conn until the client leaves, a fatal error
// occurs or ctx is cancelled. creds is nil when the request carried no
// credential; credErr is set when it carried one that could not be decoded.
// conn is closed on return.
func (h *Handler) Serve(ctx context.Context, conn Conn, creds *auth.Credentials, credErr error) {
	h.sessions.Add(1)
	defer h.sessions.Add(-1)

	id := uuid.NewString()
	s := &session{
		id:      id,
		conn:    conn,
		handler: h,
		logger:  h.logger.With("conn_id", id),
		watch:   make(map[string]struct{}),
	}
	defer s.close()

	conn.SetReadLimit(h.cfg.ReadLimit)

	if !s.authenticate(ctx, creds, credErr) {
		return
	}

	s.loop(ctx)
}

// inbound is one result of ReadMessage.
type inbound struct {
	typ  int
	data []byte
	err  error
}

// received is one result of Subscription.Recv.
type received struct {
	res quotes.Result
	err error
}

// session is the state of one connection. All fields except conn are owned
// by the goroutine running Serve.
type session struct {
	id      string
	conn    Conn
	handler *Handler
	logger  *slog.Logger

	state State
	creds auth.Credentials
	sub   *quotes.Subscription
	watch map[string]struct{}
}

func (s *session) setState(state State) {
	s.logger.Debug("watch state", "from", s.state, "to", state)
	s.state = state
}

// authenticate moves Connecting to Authenticated. On failure an error frame
// has been sent and the session must close.
func (s *session) authenticate(ctx context.Context, creds *auth.Credentials, credErr error) bool {
	if credErr != nil {
		s.writeError(apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", credErr))
		return false
	}
	if creds == nil {
		s.writeError(apperr.MissingAuth())
		return false
	}

	c, err := s.ensureFresh(ctx, *creds)
	if err != nil {
		s.logger.Warn("credential refresh failed", "err", err)
		s.writeError(apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err))
		return false
	}

	s.creds = c
	s.handler.quotes.SetCredentials(c)
	s.setState(StateAuthenticated)

	if err := s.writeJSON(eventFrame{Event: EventSubscribed}); err != nil {
		s.logger.Debug("write failed", "err", err)
		return false
	}

	s.sub = s.handler.quotes.Subscribe()
	s.logger.Info("websocket subscribed")
	return true
}

func (s *session) ensureFresh(ctx context.Context, c auth.Credentials) (auth.Credentials, error) {
	if !c.IsExpired() {
		return c, nil
	}
	if s.handler.refresher == nil {
		return auth.Credentials{}, auth.ErrNoRefreshToken
	}
	return auth.EnsureFresh(ctx, s.handler.refresher, c)
}

// loop races inbound frames against broadcast results.
func (s *session) loop(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setState(StateLooping)

	frames := make(chan inbound)
	results := make(chan received)

	go s.readPump(ctx, frames)
	go s.broadcastPump(ctx, results)

	for {
		select {
		case <-ctx.Done():
			return

		case in := <-frames:
			if in.err != nil {
				if websocket.IsCloseError(in.err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					s.logger.Debug("websocket closed by client")
				} else {
					s.logger.Debug("websocket read failed", "err", in.err)
				}
				return
			}
			if !s.handleFrame(in) {
				return
			}
			s.push()

		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, poller.ErrLagged) {
					s.logger.Warn("subscriber lagged", "err", r.err)
					continue
				}
				s.logger.Debug("broadcast ended", "err", r.err)
				return
			}
			if !s.handleResult(ctx, r.res) {
				return
			}
			s.push()
		}
	}
}

// readPump forwards inbound frames until a read fails.
func (s *session) readPump(ctx context.Context, out chan<- inbound) {
	for {
		typ, data, err := s.conn.ReadMessage()
		select {
		case out <- inbound{typ: typ, data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// broadcastPump forwards subscription values until the subscription ends.
func (s *session) broadcastPump(ctx context.Context, out chan<- received) {
	for {
		res, err := s.sub.Recv(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case out <- received{res: res, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil && !errors.Is(err, poller.ErrLagged) {
			return
		}
	}
}

// handleFrame applies one inbound frame. It reports false when the session
// must close.
func (s *session) handleFrame(in inbound) bool {
	if in.typ != websocket.TextMessage {
		return true
	}

	msg, err := ParseControl(in.data)
	if err != nil {
		s.logger.Debug("invalid control message", "err", err)
		return s.writeError(apperr.InvalidPayload()) == nil
	}

	switch msg.Type {
	case TypePing:
		deadline := time.Now().Add(s.handler.cfg.WriteTimeout)
		if err := s.conn.WriteControl(websocket.PongMessage, msg.Data, deadline); err != nil {
			s.logger.Debug("pong failed", "err", err)
			return false
		}
		return true
	case TypeAdd:
		for _, sym := range msg.Symbols {
			s.watch[sym] = struct{}{}
		}
	case TypeRemove:
		for _, sym := range msg.Symbols {
			delete(s.watch, sym)
		}
	case TypeSubscribe:
		clear(s.watch)
		for _, sym := range msg.Symbols {
			s.watch[sym] = struct{}{}
		}
	}

	err = s.writeJSON(okFrame{Event: EventOK, Type: msg.Type, Symbols: msg.Symbols})
	return err == nil
}

// handleResult forwards one poll result. It reports false when the session
// must close.
func (s *session) handleResult(ctx context.Context, res quotes.Result) bool {
	if s.creds.IsExpired() {
		fresh, err := s.ensureFresh(ctx, s.creds)
		if err != nil {
			s.logger.Warn("credential refresh failed", "err", err)
			s.writeError(apperr.Wrap(apperr.InvalidCredentialsEncoding, "invalid credentials", err))
			return false
		}
		s.creds = fresh
		s.handler.quotes.SetCredentials(fresh)
	}

	var err error
	if res.Err != nil {
		err = s.writeError(res.Err.AsError())
	} else {
		err = s.writeJSON(quoteFrame{Event: EventQuote, Data: res.Response})
	}
	return err == nil
}

// push re-asserts this connection's watch-list.
func (s *session) push() {
	symbols := make([]string, 0, len(s.watch))
	for sym := range s.watch {
		symbols = append(symbols, sym)
	}
	slices.Sort(symbols)
	s.handler.quotes.SetConnectionQuotes(s.id, symbols)
}

func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.handler.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) writeError(e *apperr.Error) error {
	err := s.writeJSON(e)
	if err != nil {
		s.logger.Debug("write failed", "err", err)
	}
	return err
}

// close releases everything the session holds. Demand is released before
// the subscription so a teardown triggered by the close sees the final
// pending set.
func (s *session) close() {
	if s.sub != nil {
		s.handler.quotes.Release(s.id)
		s.sub.Close()
	}

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()

	if s.state == StateLooping {
		s.logger.Info("websocket disconnected")
	}
	s.setState(StateClosed)
}
