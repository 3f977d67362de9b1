// Package otpAuth provides a passwordless authentication core: one-time code
// and magic-link challenges, layered request rate limiting, revocable
// server-side sessions, and a parallel stateless token for edge gating.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Dual credentials
//
// A login yields two independent credentials. The session secret resolves a
// server-side session that is revoked immediately. The stateless token is
// verified from its own signature and expiry and stays valid after its session
// is revoked, until it expires. Set Token.EnforceRevocation, or validate with
// [ModeStrict], to close that window.
//
// # Architecture boundaries
//
// otpAuth is the public surface. Storage lives behind challenge.Store and
// session.Store (Redis in-tree, Postgres under store/postgres); audit
// dispatch and secret generation live under internal/.
//
// # What this package must NOT do
//
//   - Deliver codes or links. RequestOTP returns them for the caller to send.
//   - Log plaintext codes, tokens or session secrets.
//   - Let an audit sink failure reach the caller.
//
// # Performance contract
//
// Argon2 hashing dominates RequestOTP and VerifyOTP latency. CurrentUser in
// [ModeTokenOnly] performs no store round-trip unless revocation enforcement
// is enabled.
package otpAuth
