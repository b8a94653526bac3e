// Package cipher implements the identity cipher: deterministic authenticated
// encryption of email addresses for at-rest storage.
//
// # Deterministic encryption tradeoff
//
// Encryption uses AES-256-GCM with a fixed per-deployment nonce, so the same
// plaintext always yields the same ciphertext. That makes stored emails
// exact-match searchable by ciphertext — the identity store looks accounts up
// by encrypted email — at the cost of revealing plaintext equality across
// rows. This is a deliberate, documented tradeoff, not a bug; randomized
// encryption would be stronger but would break equality lookups.
//
// # Architecture boundaries
//
// Key material is injected through [Config] at construction. This package
// never reads the environment or process-global state, and it does not decide
// when encryption happens — that is the Engine's job.
package cipher
