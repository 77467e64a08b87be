// Package quotes implements the Quote Distribution Service.
//
// The service specialises the broadcast poller to quote symbols. Each poll
// cycle reads the shared credential, requests the pending symbols from the
// upstream market data API and broadcasts one Result. Failures are captured
// once per cycle as a shared error.
//
// Watch-lists of live connections are tracked in a Demand registry. Every
// push replaces the pending set with the union of all connections' symbols,
// together with one-shot symbols that no cycle has consumed yet.
package quotes
