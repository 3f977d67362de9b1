package challenge

import "time"

// Challenge is one issued OTP request.
type Challenge struct {
	ID        string
	Email     string
	CodeHash  string
	TokenHash string
	IP        string
	UserAgent string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
	// ConsumedAt is nil until a code or link has been accepted.
	ConsumedAt *time.Time
}

// State is the derived lifecycle state of a challenge.
type State uint8

const (
	StateIssued State = iota
	StateConsumed
	StateExpired
	StateAttemptsExhausted
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	case StateAttemptsExhausted:
		return "attempts_exhausted"
	default:
		return "unknown"
	}
}

// StateOf derives the state of c at now. Consumption wins over expiry, and
// expiry wins over attempt exhaustion.
func StateOf(c *Challenge, now time.Time, maxAttempts int) State {
	switch {
	case c.ConsumedAt != nil:
		return StateConsumed
	case !now.Before(c.ExpiresAt):
		return StateExpired
	case maxAttempts > 0 && c.Attempts >= maxAttempts:
		return StateAttemptsExhausted
	default:
		return StateIssued
	}
}

// Active reports whether c can still be consumed at now, ignoring attempts.
func (c *Challenge) Active(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}
