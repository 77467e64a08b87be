package poller

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingFetcher returns the cycle number and records every batch.
type recordingFetcher struct {
	mu       sync.Mutex
	batches  [][]string
	calls    atomic.Int64
	inflight atomic.Int32
	overlap  atomic.Bool
}

func (f *recordingFetcher) Fetch(ctx context.Context, _ *http.Client, batch []string) int {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inflight.Add(-1)

	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), batch...))
	f.mu.Unlock()

	return int(f.calls.Add(1))
}

func (f *recordingFetcher) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testConfig() Config {
	return Config{BufferSize: 16, Delay: 10 * time.Millisecond}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BufferSize != 16 {
		t.Errorf("BufferSize = %d, want 16", cfg.BufferSize)
	}
	if cfg.Delay != 500*time.Millisecond {
		t.Errorf("Delay = %v, want 500ms", cfg.Delay)
	}
}

func TestPoller_SetStateAndExtendUnique(t *testing.T) {
	p := New[int, string](testConfig(), &recordingFetcher{}, nil)

	p.ExtendUnique([]string{"AAPL", "MSFT"})
	p.ExtendUnique([]string{"MSFT", "SPY", "SPY", "AAPL", "QQQ"})

	want := []string{"AAPL", "MSFT", "SPY", "QQQ"}
	if got := p.Pending(); !reflect.DeepEqual(got, want) {
		t.Errorf("Pending() = %v, want %v", got, want)
	}

	p.SetState([]string{"TSLA"})
	if got := p.Pending(); !reflect.DeepEqual(got, []string{"TSLA"}) {
		t.Errorf("Pending() after SetState = %v, want [TSLA]", got)
	}

	p.SetState(nil)
	if got := p.Pending(); len(got) != 0 {
		t.Errorf("Pending() after SetState(nil) = %v, want empty", got)
	}
}

func TestPoller_NoLoopWithoutSubscribers(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	time.Sleep(30 * time.Millisecond)
	if p.Running() {
		t.Error("Running() = true before any subscription")
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetch calls = %d, want 0", f.calls.Load())
	}
}

func TestPoller_TakeAndClear(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	p.ExtendUnique([]string{"AAPL", "MSFT"})
	sub := p.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := sub.Recv(ctx); err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
	}

	batches := f.Batches()
	if !reflect.DeepEqual(batches[0], []string{"AAPL", "MSFT"}) {
		t.Errorf("first batch = %v, want [AAPL MSFT]", batches[0])
	}
	if len(batches[1]) != 0 {
		t.Errorf("second batch = %v, want empty", batches[1])
	}
}

func TestPoller_SingleFetchPerCycle(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	const n = 10
	subs := make([]*Subscription[int, string], n)
	for i := range subs {
		subs[i] = p.Subscribe()
	}
	if p.Subscribers() != n {
		t.Fatalf("Subscribers() = %d, want %d", p.Subscribers(), n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Every subscriber observes the same sequence of cycle numbers.
	results := make([][]int, n)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription[int, string]) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				v, err := sub.Recv(ctx)
				if err != nil {
					t.Errorf("subscriber %d: Recv() error: %v", i, err)
					return
				}
				results[i] = append(results[i], v)
			}
		}(i, sub)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if !reflect.DeepEqual(results[i], results[0]) {
			t.Errorf("subscriber %d saw %v, subscriber 0 saw %v", i, results[i], results[0])
		}
	}
	if f.overlap.Load() {
		t.Error("fetch was invoked concurrently")
	}

	// Fetches track cycles, not subscribers.
	if calls, cycles := f.calls.Load(), p.Stats().Cycles; calls > cycles+1 {
		t.Errorf("fetch calls = %d for %d cycles", calls, cycles)
	}

	for _, sub := range subs {
		sub.Close()
	}
}

func TestPoller_TeardownAfterLastUnsubscribe(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	a := p.Subscribe()
	b := p.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := a.Recv(ctx); err != nil {
		t.Fatalf("Recv() error: %v", err)
	}

	a.Close()
	a.Close() // idempotent
	if p.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", p.Subscribers())
	}

	// One remaining subscriber keeps the loop alive.
	if _, err := b.Recv(ctx); err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if !p.Running() {
		t.Fatal("Running() = false with one subscriber")
	}

	p.ExtendUnique([]string{"LEFTOVER"})
	b.Close()

	waitFor(t, time.Second, func() bool { return !p.Running() })
	waitFor(t, time.Second, func() bool { return len(p.Pending()) == 0 })

	calls := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := f.calls.Load(); got != calls {
		t.Errorf("fetch calls grew from %d to %d after teardown", calls, got)
	}
}

func TestPoller_ConcurrentSubscribeAndClose(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](Config{BufferSize: 4, Delay: time.Millisecond}, f, nil)
	defer p.Close()

	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for round := 0; round < 200; round++ {
				sub := p.Subscribe()
				p.ExtendUnique([]string{"S" + strconv.Itoa(g)})
				sub.Close()

				again := p.Subscribe()
				again.Close()
			}
		}(g)
	}
	wg.Wait()

	if got := p.Subscribers(); got != 0 {
		t.Fatalf("Subscribers() = %d, want 0", got)
	}
	waitFor(t, 2*time.Second, func() bool { return !p.Running() })
	waitFor(t, 2*time.Second, func() bool { return len(p.Pending()) == 0 })
	if f.overlap.Load() {
		t.Error("fetch ran concurrently with itself")
	}

	// The poller still works after the churn.
	sub := p.Subscribe()
	defer sub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := sub.Recv(ctx); err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
}

// resettingFetcher counts Reset calls.
type resettingFetcher struct {
	recordingFetcher
	resets atomic.Int32
}

func (f *resettingFetcher) Reset() { f.resets.Add(1) }

func TestPoller_TeardownResetsFetcher(t *testing.T) {
	f := &resettingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	sub := p.Subscribe()
	sub.Close()

	waitFor(t, time.Second, func() bool { return f.resets.Load() == 1 })
	if p.Running() {
		t.Error("Running() = true after teardown")
	}

	// A teardown voided by a new subscriber does not reset.
	first := p.Subscribe()
	first.Close()
	second := p.Subscribe()
	time.Sleep(50 * time.Millisecond)
	if got := f.resets.Load(); got != 1 {
		t.Errorf("resets = %d, want 1 while subscribed", got)
	}
	second.Close()
	waitFor(t, time.Second, func() bool { return f.resets.Load() == 2 })
}

func TestPoller_ResubscribeRestartsLoop(t *testing.T) {
	f := &recordingFetcher{}
	p := New[int, string](testConfig(), f, nil)
	defer p.Close()

	first := p.Subscribe()
	first.Close()

	// Subscribing again immediately must leave a live loop regardless of
	// when the scheduled teardown runs.
	second := p.Subscribe()
	defer second.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if _, err := second.Recv(ctx); err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
	}
	if !p.Running() {
		t.Error("Running() = false with a live subscriber")
	}
}

func TestPoller_LaggedSubscriber(t *testing.T) {
	var calls atomic.Int64
	fetcher := FetcherFunc[int, string](func(ctx context.Context, _ *http.Client, _ []string) int {
		n := calls.Add(1)
		if n > 5 {
			<-ctx.Done()
			return -1
		}
		return int(n)
	})

	p := New[int, string](Config{BufferSize: 2, Delay: time.Millisecond}, fetcher, nil)
	defer p.Close()

	sub := p.Subscribe()
	defer sub.Close()

	waitFor(t, 2*time.Second, func() bool { return p.Stats().Cycles == 5 })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := sub.Recv(ctx)
	var lagged *LaggedError
	if !errors.As(err, &lagged) {
		t.Fatalf("Recv() error = %v, want *LaggedError", err)
	}
	if lagged.Missed != 3 {
		t.Errorf("Missed = %d, want 3", lagged.Missed)
	}

	for _, want := range []int{4, 5} {
		v, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv() error after lag: %v", err)
		}
		if v != want {
			t.Errorf("Recv() = %d, want %d", v, want)
		}
	}
}

func TestPoller_Close(t *testing.T) {
	p := New[int, string](testConfig(), &recordingFetcher{}, nil)
	sub := p.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if p.Running() {
		t.Error("Running() = true after Stop()")
	}

	// Drain anything published before the close.
	for {
		_, err := sub.Recv(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v, want ErrClosed", err)
		}
	}

	sub.Close()
	if _, err := sub.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv() on closed subscription = %v, want ErrClosed", err)
	}

	late := p.Subscribe()
	defer late.Close()
	if p.Running() {
		t.Error("subscribing to a closed poller started a loop")
	}
}

func TestPoller_PassesHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	got := make(chan *http.Client, 1)

	fetcher := FetcherFunc[int, string](func(_ context.Context, client *http.Client, _ []string) int {
		select {
		case got <- client:
		default:
		}
		return 0
	})

	cfg := testConfig()
	cfg.HTTPClient = hc
	p := New[int, string](cfg, fetcher, nil)
	defer p.Close()

	sub := p.Subscribe()
	defer sub.Close()

	select {
	case client := <-got:
		if client != hc {
			t.Error("fetch did not receive the configured client")
		}
	case <-time.After(time.Second):
		t.Fatal("fetch was not invoked")
	}
}
