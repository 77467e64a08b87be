package quotes

import (
	"slices"
	"sync"
)

// Demand records the symbols each connection is watching plus symbols
// requested once by one-shot callers.
type Demand struct {
	mu    sync.Mutex
	conns map[string][]string
	once  map[string]struct{}
}

// NewDemand creates an empty registry.
func NewDemand() *Demand {
	return &Demand{
		conns: make(map[string][]string),
		once:  make(map[string]struct{}),
	}
}

// Set records the watch-list of connID, replacing the previous one.
func (d *Demand) Set(connID string, symbols []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[connID] = slices.Clone(symbols)
}

// Remove forgets connID.
func (d *Demand) Remove(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, connID)
}

// AddOnce holds symbols until a fetch cycle consumes them.
func (d *Demand) AddOnce(symbols []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range symbols {
		d.once[s] = struct{}{}
	}
}

// Consume drops one-shot symbols present in batch.
func (d *Demand) Consume(batch []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range batch {
		delete(d.once, s)
	}
}

// ClearOnce drops all one-shot symbols.
func (d *Demand) ClearOnce() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.once)
}

// Union returns every demanded symbol, sorted and without duplicates.
func (d *Demand) Union() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := make(map[string]struct{}, len(d.once))
	for s := range d.once {
		set[s] = struct{}{}
	}
	for _, symbols := range d.conns {
		for _, s := range symbols {
			set[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Connections returns the number of registered connections.
func (d *Demand) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
