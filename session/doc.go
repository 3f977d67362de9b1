// Package session provides opaque server-side session persistence and the
// revocation denylist for stateless tokens.
//
// # Secrets
//
// A session is created from a random secret that is returned to the client
// once. Only its SHA-256 digest is stored, in [Session.SecretHash], and
// lookups go through [Store.FindBySecretHash]. The plaintext never reaches
// this package.
//
// # State
//
// Sessions have no status column. [StateOf] derives Active, Revoked or
// Expired from RevokedAt and ExpiresAt. Revocation is a conditional write and
// is idempotent.
//
// # Architecture boundaries
//
// This package owns the [Store] interface, the [RedisStore] implementation,
// the [Session] model and the [RevocationList]. It does NOT interpret tokens or
// decide authorization; those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import otpAuth, jwt, or challenge (no upward imports).
//   - Store plaintext secrets in [Session] fields.
package session
