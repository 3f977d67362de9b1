package otpAuth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEmail is returned when an email address fails syntax validation.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidCode is returned when a submitted code or magic token is malformed.
	ErrInvalidCode = errors.New("invalid code format")
	// ErrDisposableEmail is returned when disposable addresses are rejected by policy.
	ErrDisposableEmail = errors.New("disposable email rejected")
	// ErrOTPRateLimited is matched by every *RateLimitError.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrVerificationFailed is matched by every *VerificationError.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrStoreUnavailable wraps persistence backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnauthorized is returned when no valid credential is presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller's role is below the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSessionNotFound is returned when revoking an unknown session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned when a token cannot be issued for the given claims.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUserNotFound is returned by UserProvider implementations for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionCreationFailed is returned when a session cannot be persisted.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrInvalidRouteMode is returned for an unknown ValidationMode.
	ErrInvalidRouteMode = errors.New("invalid validation mode")
)

// RateLimitError describes a denied OTP request or verification.
type RateLimitError struct {
	Policy  string
	Count   int
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("otp rate limited: %s (%d/%d, resets %s)", e.Policy, e.Count, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is matches ErrOTPRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrOTPRateLimited
}

// RetryAfter returns the wait until ResetAt, floored at zero.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if e.ResetAt.IsZero() || !e.ResetAt.After(now) {
		return 0
	}
	return e.ResetAt.Sub(now)
}

// VerificationError carries the reason an OTP or magic-link login failed.
type VerificationError struct {
	Reason VerifyReason
}

func (e *VerificationError) Error() string {
	return "verification failed: " + string(e.Reason)
}

// Is matches ErrVerificationFailed.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
