// Package middleware exposes net/http adapters over otpAuth.Engine identity
// resolution.
//
// # Guards
//
//   - [Guard] resolves the caller under a given validation mode.
//   - [RequireTokenOnly] verifies the stateless token alone, with no store call.
//   - [RequireStrict] requires a live server-side session.
//   - [RequireRole] rejects identities below a role; it must run after a guard.
//   - [Throttle] applies a general-purpose fixed-window limiter.
//   - [ClientInfo] records the caller's IP and User-Agent for the engine.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access stores (Engine handles I/O).
package middleware
