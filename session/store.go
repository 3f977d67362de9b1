package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session matches a lookup.
var ErrNotFound = errors.New("session not found")

// Store persists sessions.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	// FindBySecretHash returns the session with the given digest in any state.
	FindBySecretHash(ctx context.Context, secretHash string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// Revoke sets RevokedAt to now if unset and reports whether this call did so.
	Revoke(ctx context.Context, id string, now time.Time) (bool, error)
	// RevokeAllForUser revokes every unrevoked session of userID and returns
	// the ids this call revoked.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]string, error)
	// ListForUser returns all retained sessions of userID, newest first.
	ListForUser(ctx context.Context, userID string) ([]*Session, error)
}
