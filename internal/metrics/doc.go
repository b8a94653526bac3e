// Package metrics provides lock-free counters and a latency histogram for
// authflow observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The single histogram covers
// flow-session verification latency with 8 fixed buckets (≤5ms … +Inf).
// Both are allocation-free on the write path.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import authflow or any sibling package.
//   - Expose global metric registries.
package metrics
