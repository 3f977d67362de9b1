package session

import "time"

// Horizon is the fixed lifetime of a session and of the token minted with it.
const Horizon = 30 * 24 * time.Hour

// Session is a server-side login record.
type Session struct {
	ID         string
	UserID     string
	SecretHash string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	// RevokedAt is nil while the session has not been revoked.
	RevokedAt *time.Time
}

// State is the derived lifecycle state of a session.
type State uint8

const (
	StateActive State = iota
	StateRevoked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// StateOf derives the state of s at now. Revocation wins over expiry.
func StateOf(s *Session, now time.Time) State {
	switch {
	case s.RevokedAt != nil:
		return StateRevoked
	case !now.Before(s.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// Active reports whether s is usable at now.
func (s *Session) Active(now time.Time) bool {
	return StateOf(s, now) == StateActive
}
