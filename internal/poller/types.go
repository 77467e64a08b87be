package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrClosed = errors.New("poller closed")
	ErrLagged = errors.New("subscriber lagged")
)

// LaggedError reports values a subscriber missed because the ring wrapped
// past it. The subscriber resumes at the oldest retained value.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged: missed %d values", e.Missed)
}

// Is makes errors.Is(err, ErrLagged) match.
func (e *LaggedError) Is(target error) bool {
	return target == ErrLagged
}

// Config holds poller configuration.
type Config struct {
	BufferSize int           // Broadcast ring capacity (default: 16)
	Delay      time.Duration // Pause between cycles (default: 500ms)
	HTTPClient *http.Client  // Shared client handed to every fetch; may be nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 16,
		Delay:      500 * time.Millisecond,
	}
}

// Fetcher produces one broadcast value from a batch of pending parameters.
// It is never invoked concurrently with itself. Failures belong in the
// returned value; the loop does not stop on them.
type Fetcher[T any, S comparable] interface {
	Fetch(ctx context.Context, client *http.Client, batch []S) T
}

// Resetter is implemented by fetchers that keep state across cycles. Reset
// runs when the loop is torn down for lack of subscribers, after the
// pending set has been cleared.
type Resetter interface {
	Reset()
}

// FetcherFunc is a function adapter for Fetcher.
type FetcherFunc[T any, S comparable] func(ctx context.Context, client *http.Client, batch []S) T

func (f FetcherFunc[T, S]) Fetch(ctx context.Context, client *http.Client, batch []S) T {
	return f(ctx, client, batch)
}

// Stats contains poller statistics.
type Stats struct {
	Running     bool
	Subscribers int
	Pending     int
	Cycles      int64
	LastCycle   time.Time
	Broadcast   BroadcastStats
}
