package challenge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no challenge matches a lookup.
	ErrNotFound = errors.New("challenge not found")
	// ErrAttemptsExhausted is returned by ReserveAttempt when the challenge
	// has no verification attempt left.
	ErrAttemptsExhausted = errors.New("challenge attempts exhausted")
)

// Store persists challenges. Emails are passed already normalized.
type Store interface {
	Insert(ctx context.Context, c *Challenge) error
	// Latest returns the most recently created challenge for email in any state.
	Latest(ctx context.Context, email string) (*Challenge, error)
	// LatestActive returns the most recently created challenge for email that
	// is neither consumed nor expired at now.
	LatestActive(ctx context.Context, email string, now time.Time) (*Challenge, error)
	// ReserveAttempt atomically adds one to the attempts counter unless it
	// has already reached limit, and returns the new value. It returns
	// ErrAttemptsExhausted when no attempt is left and ErrNotFound when the
	// challenge is gone or consumed. At most limit calls ever succeed.
	ReserveAttempt(ctx context.Context, id string, limit int) (int, error)
	// Consume sets ConsumedAt to now and releases the caller's reserved
	// attempt, provided the challenge is unconsumed and attempts <= limit. It
	// reports whether this call performed the write.
	Consume(ctx context.Context, id string, now time.Time, limit int) (bool, error)
	// EmailRequestTimes returns creation times of challenges for email at or
	// after since, oldest first.
	EmailRequestTimes(ctx context.Context, email string, since time.Time) ([]time.Time, error)
	// IPRequestTimes returns creation times of challenges requested from ip at
	// or after since, oldest first.
	IPRequestTimes(ctx context.Context, ip string, since time.Time) ([]time.Time, error)
}
