// Package internal contains helper utilities that are intentionally private to otpAuth:
// secure random generation of one-time codes and secrets, and secret digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - emailcheck: address normalization, syntax validation and disposable-domain detection
//   - security: posture report backing Engine.SecurityReport
//
// # What this package must NOT do
//
//   - Export types that appear in the public otpAuth API.
//   - Be imported by any package outside the otpAuth module.
package internal
