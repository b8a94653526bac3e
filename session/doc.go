// Package session provides the redis-backed long-lived authenticated
// session: an opaque id mapped to a compact binary record with a fixed TTL.
//
// This is deliberately not a general-purpose web session store. A session
// carries the user id and its lifetime bounds, nothing else; everything a
// request needs beyond "who is this" is the caller's concern.
//
// # Binary encoding
//
// Records are stored as a versioned binary format. The encoder is
// append-only: new versions add fields but never reinterpret old ones.
//
// # What this package must NOT do
//
//   - Import authflow or cookie (no upward imports).
//   - Make authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
