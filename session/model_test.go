package session

import (
	"testing"
	"time"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Hour)

	cases := []struct {
		name string
		s    Session
		want State
	}{
		{"active", Session{ExpiresAt: now.Add(time.Second)}, StateActive},
		{"expired at boundary", Session{ExpiresAt: now}, StateExpired},
		{"revoked", Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, StateRevoked},
		{"revoked beats expired", Session{ExpiresAt: now.Add(-time.Hour), RevokedAt: &revoked}, StateRevoked},
	}

	for _, tc := range cases {
		if got := StateOf(&tc.s, now); got != tc.want {
			t.Fatalf("%s: StateOf = %v, want %v", tc.name, got, tc.want)
		}
	}

	active := Session{ExpiresAt: now.Add(time.Minute)}
	if !active.Active(now) {
		t.Fatal("expected session to be active")
	}
}
