package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Poller runs one fetch loop on behalf of all its subscribers and broadcasts
// each result. The loop exists only while the subscriber count is above zero.
//
// Lock order: handleMu before pendingMu. fetchMu is taken only by the loop,
// never while holding either of the others. Resetter.Reset is called with
// handleMu held.
type Poller[T any, S comparable] struct {
	cfg     Config
	fetcher Fetcher[T, S]
	logger  *slog.Logger
	ring    *Broadcast[T]

	subscribers atomic.Int64

	handleMu   sync.Mutex
	handle     *loopHandle
	generation uint64
	closed     bool
	wg         sync.WaitGroup

	pendingMu sync.Mutex
	pending   []S

	fetchMu sync.Mutex

	cycles    atomic.Int64
	lastCycle atomic.Int64 // unix nanos
}

// loopHandle identifies one running loop goroutine.
type loopHandle struct {
	cancel context.CancelFunc
}

// New creates a new Poller. The loop does not start until the first
// subscription.
func New[T any, S comparable](cfg Config, fetcher Fetcher[T, S], logger *slog.Logger) *Poller[T, S] {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.Delay < 0 {
		cfg.Delay = defaults.Delay
	}
	return &Poller[T, S]{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		ring:    NewBroadcast[T](cfg.BufferSize),
	}
}

// SetState replaces the pending parameter set.
func (p *Poller[T, S]) SetState(items []S) {
	next := make([]S, len(items))
	copy(next, items)

	p.pendingMu.Lock()
	p.pending = next
	p.pendingMu.Unlock()
}

// ExtendUnique appends each item not already pending, preserving order.
func (p *Poller[T, S]) ExtendUnique(items []S) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	seen := make(map[S]struct{}, len(p.pending)+len(items))
	for _, item := range p.pending {
		seen[item] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		p.pending = append(p.pending, item)
	}
}

// Pending returns a copy of the pending parameter set.
func (p *Poller[T, S]) Pending() []S {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	out := make([]S, len(p.pending))
	copy(out, p.pending)
	return out
}

// takePending returns the pending set and leaves it empty.
func (p *Poller[T, S]) takePending() []S {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	batch := p.pending
	p.pending = nil
	return batch
}

// Subscribe attaches a new subscriber. The subscription sees only values
// published after this call. The first subscriber starts the loop.
func (p *Poller[T, S]) Subscribe() *Subscription[T, S] {
	sub := &Subscription[T, S]{
		poller: p,
		recv:   p.ring.Receiver(),
	}

	if p.subscribers.Add(1) == 1 {
		p.spawnIfNeeded()
	}

	return sub
}

// spawnIfNeeded starts the loop unless one is already live. Every call starts
// a new generation so that a teardown scheduled before it is void.
func (p *Poller[T, S]) spawnIfNeeded() {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()

	p.generation++

	if p.closed || p.handle != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{cancel: cancel}
	p.handle = h

	p.wg.Add(1)
	go p.run(ctx, h)

	p.logger.Debug("poll loop started", "generation", p.generation)
}

// release detaches h if there are still no subscribers. It reports whether
// the loop should exit.
func (p *Poller[T, S]) release(h *loopHandle) bool {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()

	if p.subscribers.Load() > 0 {
		return false
	}
	if p.handle == h {
		p.handle = nil
	}
	return true
}

// teardown stops the loop, clears the pending set and resets the fetcher,
// provided no new subscriber arrived since it was scheduled.
func (p *Poller[T, S]) teardown(generation uint64) {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()

	if p.generation != generation || p.subscribers.Load() > 0 {
		return
	}

	if p.handle != nil {
		p.handle.cancel()
		p.handle = nil
	}

	p.pendingMu.Lock()
	p.pending = nil
	p.pendingMu.Unlock()

	if r, ok := p.fetcher.(Resetter); ok {
		r.Reset()
	}

	p.logger.Debug("poll loop torn down", "generation", generation)
}

// scheduleTeardown runs teardown asynchronously for the current generation.
func (p *Poller[T, S]) scheduleTeardown() {
	p.handleMu.Lock()
	generation := p.generation
	p.handleMu.Unlock()

	go p.teardown(generation)
}

// run is the main polling loop.
func (p *Poller[T, S]) run(ctx context.Context, h *loopHandle) {
	defer p.wg.Done()

	for {
		if p.subscribers.Load() == 0 && p.release(h) {
			p.logger.Debug("poll loop stopped", "reason", "no subscribers")
			return
		}

		batch := p.takePending()

		start := time.Now()
		value, ok := p.fetch(ctx, batch)
		if !ok {
			return
		}

		p.ring.Send(value)
		p.cycles.Add(1)
		p.lastCycle.Store(time.Now().UnixNano())

		p.logger.Debug("poll cycle complete",
			"batch", len(batch),
			"subscribers", p.subscribers.Load(),
			"duration", time.Since(start),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Delay):
		}
	}
}

// fetch invokes the fetcher under fetchMu. It reports false when the loop was
// cancelled, in which case the result is discarded.
func (p *Poller[T, S]) fetch(ctx context.Context, batch []S) (T, bool) {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	var zero T
	if ctx.Err() != nil {
		return zero, false
	}

	value := p.fetcher.Fetch(ctx, p.cfg.HTTPClient, batch)
	if ctx.Err() != nil {
		return zero, false
	}
	return value, true
}

// Running reports whether a loop is currently live.
func (p *Poller[T, S]) Running() bool {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	return p.handle != nil
}

// Subscribers returns the current subscriber count.
func (p *Poller[T, S]) Subscribers() int {
	return int(p.subscribers.Load())
}

// Stats returns poller statistics.
func (p *Poller[T, S]) Stats() Stats {
	s := Stats{
		Running:     p.Running(),
		Subscribers: p.Subscribers(),
		Pending:     len(p.Pending()),
		Cycles:      p.cycles.Load(),
		Broadcast:   p.ring.Stats(),
	}
	if ns := p.lastCycle.Load(); ns != 0 {
		s.LastCycle = time.Unix(0, ns)
	}
	return s
}

// Close stops the loop and closes the ring. Subscribers receive ErrClosed
// once drained.
func (p *Poller[T, S]) Close() {
	p.handleMu.Lock()
	if !p.closed {
		p.closed = true
		if p.handle != nil {
			p.handle.cancel()
			p.handle = nil
		}
	}
	p.handleMu.Unlock()

	p.ring.Close()
}

// Stop closes the poller and waits for loop goroutines to exit.
func (p *Poller[T, S]) Stop(ctx context.Context) error {
	p.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription is one subscriber's handle on a Poller.
type Subscription[T any, S comparable] struct {
	poller *Poller[T, S]
	recv   *Receiver[T]
	closed atomic.Bool
}

// Recv returns the next broadcast value. See Receiver.Recv for errors.
func (s *Subscription[T, S]) Recv(ctx context.Context) (T, error) {
	if s.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	return s.recv.Recv(ctx)
}

// Close detaches the subscriber. The last subscriber to leave schedules
// asynchronous teardown of the loop. Close is idempotent.
func (s *Subscription[T, S]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.poller.subscribers.Add(-1) == 0 {
		s.poller.scheduleTeardown()
	}
}
