// Package poller implements the Broadcast Poller.
//
// The Broadcast Poller:
//   - Runs a single fetch loop while at least one subscriber is attached
//   - Fetches the accumulated pending parameter set once per cycle, then clears it
//   - Waits a fixed delay between cycles
//   - Publishes every result to all subscribers through a bounded ring
//   - Reports overrun subscribers as lagged instead of blocking the loop
package poller
