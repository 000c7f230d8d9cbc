// Package library owns the RefForge aggregate: the full list of projects and
// references the UI renders.
//
// # Mutations
//
// Every mutation runs on a single worker goroutine in the order it was
// submitted. The worker writes through the store and, only on success,
// re-reads both tables and publishes a new Snapshot. Readers never see a
// partially applied change; a failed write leaves the published snapshot as
// it was.
//
// # Lifecycle
//
//	Uninitialized -> Loading -> Ready
//	                        \-> Degraded -> (Reconnect) -> Ready
//
// Initialize opens the store with a bounded wait. An empty store is seeded
// once with SampleData. If the store can't be opened the Core switches to an
// in-memory store holding the fallback dataset, keeps accepting mutations
// and journals them. Reconnect replays the journal against the durable store;
// View().PendingSync reports how many mutations are waiting.
package library
