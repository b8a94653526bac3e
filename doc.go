// Package authflow issues and validates the short-lived, single-purpose
// credentials that gate identity-changing operations: account creation,
// password login with an emailed second factor, password reset, and account
// recovery via backup codes.
//
// # Model
//
// Every flow moves a caller through multiple unauthenticated HTTP requests.
// At each step the engine proves that the caller who requested a one-time
// code is the caller now presenting it, without trusting the client to hold
// authoritative state:
//
//   - a one-time code is issued, stored hashed under (purpose, identity)
//     with a short TTL, and delivered out of band;
//   - verifying the code consumes it and mints a correlated session token
//     in the secret store;
//   - the token travels inside a signed, HTTP-only bearer cookie, and every
//     protected step re-validates the embedded token against the store —
//     the signature proves authorship, only the store proves liveness;
//   - completing the flow revokes the token, making the cookie inert.
//
// Redis is the sole point of coordination; handlers share no in-process
// mutable state. Persistent identity storage, outbound email delivery, and
// the HTTP layer are consumed through the narrow [IdentityStore],
// [CodeSender], and cookie-value contracts.
//
// Construct an [Engine] with [New]:
//
//	engine, err := authflow.New().
//		WithRedis(rdb).
//		WithIdentityStore(store).
//		WithCodeSender(sender).
//		WithConfig(cfg).
//		Build()
package authflow
