package poller

import (
	"context"
	"sync"
)

// Broadcast is a fixed-capacity ring read independently by many receivers.
// Sending never blocks: once the ring is full the oldest value is
// overwritten and receivers that had not read it observe a LaggedError.
type Broadcast[T any] struct {
	mu     sync.Mutex
	buf    []T
	next   uint64 // sequence number of the next value sent
	closed bool
	notify chan struct{}

	// Stats
	totalSent int64
}

// NewBroadcast creates a ring with the given capacity.
func NewBroadcast[T any](capacity int) *Broadcast[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Broadcast[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Send publishes v to every receiver. Having no receivers is not an error.
// Returns false if the ring is closed.
func (b *Broadcast[T]) Send(v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	b.buf[b.next%uint64(len(b.buf))] = v
	b.next++
	b.totalSent++

	// Wake all waiting receivers
	close(b.notify)
	b.notify = make(chan struct{})
	return true
}

// Close closes the ring. Receivers drain what they can still reach and then
// get ErrClosed.
func (b *Broadcast[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Receiver returns a receiver positioned after the most recent value; it sees
// only values sent from now on.
func (b *Broadcast[T]) Receiver() *Receiver[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Receiver[T]{b: b, pos: b.next}
}

// Stats returns ring statistics.
func (b *Broadcast[T]) Stats() BroadcastStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BroadcastStats{
		Capacity:  len(b.buf),
		TotalSent: b.totalSent,
		Closed:    b.closed,
	}
}

// BroadcastStats contains ring statistics.
type BroadcastStats struct {
	Capacity  int
	TotalSent int64
	Closed    bool
}

// Receiver reads a Broadcast from its own position.
// A Receiver must not be used from multiple goroutines.
type Receiver[T any] struct {
	b   *Broadcast[T]
	pos uint64
}

// Recv blocks until the next value is available. It returns a *LaggedError
// once when values were overwritten before being read, ErrClosed after the
// ring is closed and drained, or ctx.Err() on cancellation.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		b := r.b
		b.mu.Lock()

		var oldest uint64
		if capacity := uint64(len(b.buf)); b.next > capacity {
			oldest = b.next - capacity
		}

		if r.pos < oldest {
			missed := oldest - r.pos
			r.pos = oldest
			b.mu.Unlock()
			return zero, &LaggedError{Missed: missed}
		}

		if r.pos < b.next {
			v := b.buf[r.pos%uint64(len(b.buf))]
			r.pos++
			b.mu.Unlock()
			return v, nil
		}

		if b.closed {
			b.mu.Unlock()
			return zero, ErrClosed
		}

		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wait:
		}
	}
}
