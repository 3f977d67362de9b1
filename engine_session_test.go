package otpAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
)

func TestSessionResolvesUntilHorizon(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := clientCtx("198.51.100.1")

	grant, err := engine.CreateSession(ctx, User{ID: "u1", Email: "u1@example.com", Role: RoleBuyer})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if want := env.clock.Now().Add(30 * 24 * time.Hour); !grant.Session.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, grant.Session.ExpiresAt)
	}
	if grant.Session.SecretHash != internal.DigestSecret(grant.Secret) || grant.Session.SecretHash == grant.Secret {
		t.Fatal("session must store only the secret digest")
	}
	if grant.Session.IP != "198.51.100.1" || grant.Session.UserAgent != "otpauth-test/1.0" {
		t.Fatalf("unexpected session origin: %+v", grant.Session)
	}

	env.clock.Set(grant.Session.ExpiresAt.Add(-time.Second))
	sess, err := engine.ResolveSession(ctx, grant.Secret)
	if err != nil || sess == nil || sess.ID != grant.Session.ID {
		t.Fatalf("expected session at expiresAt-1s, got %+v err=%v", sess, err)
	}

	env.clock.Set(grant.Session.ExpiresAt.Add(time.Second))
	sess, err = engine.ResolveSession(ctx, grant.Secret)
	if err != nil || sess != nil {
		t.Fatalf("expected nil at expiresAt+1s, got %+v err=%v", sess, err)
	}
}

func TestSessionExpiryMatchesTokenExpiry(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	env.clock.Advance(750 * time.Millisecond)

	res := mustLogin(t, engine, "seconds@example.com")
	want := env.clock.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if !res.Session.ExpiresAt.Equal(want) {
		t.Fatalf("expected session expiry %s, got %s", want, res.Session.ExpiresAt)
	}
	if !res.TokenExpiresAt.Equal(res.Session.ExpiresAt) {
		t.Fatalf("token expiry %s differs from session expiry %s", res.TokenExpiresAt, res.Session.ExpiresAt)
	}
	claims := engine.DecodeToken(res.Token)
	if claims == nil || claims.ExpiresAt == nil || !claims.ExpiresAt.Time.Equal(res.Session.ExpiresAt) {
		t.Fatalf("exp claim does not match session expiry: %+v", claims)
	}
}

func TestResolveSessionMissesAreIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	unknown, _ := internal.NewSecret()
	for _, secret := range []string{"", "garbage", unknown} {
		sess, err := engine.ResolveSession(ctx, secret)
		if err != nil || sess != nil {
			t.Fatalf("secret %q: expected nil, nil; got %+v, %v", secret, sess, err)
		}
	}
}

func TestRevokeAllSessionsForUserIsolation(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	alice := User{ID: "alice", Email: "alice@example.com", Role: RoleSeller}
	bob := User{ID: "bob", Email: "bob@example.com", Role: RoleBuyer}

	a1, err := engine.CreateSession(ctx, alice)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	a2, err := engine.CreateSession(ctx, alice)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	b1, err := engine.CreateSession(ctx, bob)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	n, err := engine.RevokeAllSessionsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokeAllSessionsForUser failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	for _, g := range []*SessionGrant{a1, a2} {
		if sess, _ := engine.ResolveSession(ctx, g.Secret); sess != nil {
			t.Fatalf("alice session %s still resolves", g.Session.ID)
		}
	}
	if sess, _ := engine.ResolveSession(ctx, b1.Secret); sess == nil {
		t.Fatal("bob's session must remain valid")
	}

	n, err = engine.RevokeAllSessionsForUser(ctx, "alice")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent revoke-all, got n=%d err=%v", n, err)
	}
}

func TestRevokeSessionIdempotent(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := context.Background()

	grant, err := engine.CreateSession(ctx, User{ID: "u2", Email: "u2@example.com", Role: RoleBuyer})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := engine.RevokeSession(ctx, grant.Session.ID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if err := engine.RevokeSession(ctx, grant.Session.ID); err != nil {
		t.Fatalf("second RevokeSession failed: %v", err)
	}
	if err := engine.RevokeSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if got := engine.MetricsSnapshot().Counters[MetricSessionRevoked]; got != 1 {
		t.Fatalf("expected one revocation counted, got %d", got)
	}
	if got := len(env.sink.Kind(AuditLogout)); got != 2 {
		t.Fatalf("expected 2 logout events, got %d", got)
	}
}

func TestLogout(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := context.Background()

	res := mustLogin(t, engine, "logout@example.com")

	if err := engine.Logout(ctx, res.SessionSecret); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if sess, _ := engine.ResolveSession(ctx, res.SessionSecret); sess != nil {
		t.Fatal("session resolves after logout")
	}

	unknown, _ := internal.NewSecret()
	if err := engine.Logout(ctx, unknown); err != nil {
		t.Fatalf("logout with unknown secret must succeed, got %v", err)
	}
	if err := engine.Logout(ctx, res.SessionSecret); err != nil {
		t.Fatalf("repeat logout must succeed, got %v", err)
	}

	events := env.sink.Kind(AuditLogout)
	if len(events) == 0 || events[0].UserID != res.User.ID || events[0].SessionID != res.Session.ID {
		t.Fatalf("unexpected logout events: %+v", events)
	}
}

func TestListSessionsActiveNewestFirst(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := context.Background()
	user := User{ID: "lister", Email: "lister@example.com", Role: RoleBuyer}

	first, _ := engine.CreateSession(ctx, user)
	env.clock.Advance(time.Minute)
	second, _ := engine.CreateSession(ctx, user)
	env.clock.Advance(time.Minute)
	third, _ := engine.CreateSession(ctx, user)

	if err := engine.RevokeSession(ctx, second.Session.ID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	list, err := engine.ListSessions(ctx, "lister")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != third.Session.ID || list[1].ID != first.Session.ID {
		t.Fatalf("unexpected session list: %+v", list)
	}
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if _, err := engine.CreateSession(context.Background(), User{}); !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed, got %v", err)
	}
}

func TestCreateSessionStoreDown(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	env.stopRedis()

	_, err := engine.CreateSession(context.Background(), User{ID: "u3", Email: "u3@example.com", Role: RoleBuyer})
	if !errors.Is(err, ErrSessionCreationFailed) || !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected session creation + store errors, got %v", err)
	}
}
