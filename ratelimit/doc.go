// Package ratelimit provides fixed-window counters and the OTP request and
// verification policies built on them.
//
// # Counters
//
//   - [MemoryCounter]: process-local, reset lazily when a window elapses.
//   - [RedisCounter]: INCR + PEXPIRE per key, shared across processes.
//   - [FallbackCounter]: a Redis counter that degrades to a memory counter
//     when the backend is unreachable.
//
// [Window] turns a Counter into a named limit (count per duration) with a
// non-mutating [Window.Check] and a counting [Window.Allow].
//
// # OTP policies
//
// [OTPPolicy] evaluates the request gates (per-email cap, per-IP cap, cooldown)
// against request timestamps supplied by a [RequestHistory], and the
// verification gate against a challenge's attempts counter. Request caps are
// derived from durable challenge records, not from Counter state.
//
// # What this package must NOT do
//
//   - Import otpAuth or any store package.
//   - Record audit events. Callers decide consequences from a [Decision].
package ratelimit
