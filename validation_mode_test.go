package otpAuth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenOutlivesRevokedSession(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := context.Background()

	res := mustLogin(t, engine, "stale@example.com")
	if err := engine.Logout(ctx, res.SessionSecret); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// The session is gone but the token still verifies on its own.
	if sess, _ := engine.ResolveSession(ctx, res.SessionSecret); sess != nil {
		t.Fatal("session must not resolve after logout")
	}
	claims := engine.DecodeToken(res.Token)
	if claims == nil || claims.UserID != res.User.ID || claims.SessionID != res.Session.ID {
		t.Fatalf("expected token to decode after revocation, got %+v", claims)
	}
	id, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeTokenOnly)
	if err != nil || id.Source != SourceToken {
		t.Fatalf("expected token-only identity during staleness window, got %+v err=%v", id, err)
	}

	if _, err := engine.CurrentUser(ctx, Credentials{Token: res.Token, SessionSecret: res.SessionSecret}, ModeStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("strict mode must reject the revoked session, got %v", err)
	}

	env.clock.Set(res.TokenExpiresAt.Add(-time.Second))
	if engine.DecodeToken(res.Token) == nil {
		t.Fatal("token must verify until its own expiry")
	}
	env.clock.Set(res.TokenExpiresAt.Add(time.Second))
	if engine.DecodeToken(res.Token) != nil {
		t.Fatal("token must be rejected after expiry")
	}
}

func TestEnforceRevocationClosesStalenessWindow(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Token.EnforceRevocation = true
	})
	ctx := context.Background()

	res := mustLogin(t, engine, "enforced@example.com")
	if _, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeTokenOnly); err != nil {
		t.Fatalf("expected token identity before revocation, got %v", err)
	}

	if err := engine.RevokeSession(ctx, res.Session.ID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	// Signature is still valid; the denylist rejects it.
	if engine.DecodeToken(res.Token) == nil {
		t.Fatal("DecodeToken must not consult the revocation list")
	}
	if _, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeTokenOnly); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for revoked token, got %v", err)
	}
}

func TestEnforceRevocationAfterRevokeAll(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Token.EnforceRevocation = true
	})
	ctx := context.Background()

	res := mustLogin(t, engine, "forced@example.com")
	if err := engine.LogoutAll(ctx, res.User.ID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if _, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeHybrid); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after forced logout, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLogoutAll]; got != 1 {
		t.Fatalf("expected logout-all metric 1, got %d", got)
	}
}

func TestTokenOnlyModeDoesNotRequireRedis(t *testing.T) {
	engine, env := newTestEngine(t, nil)

	res := mustLogin(t, engine, "offline@example.com")
	env.stopRedis()

	id, err := engine.CurrentUser(context.Background(), Credentials{Token: res.Token}, ModeTokenOnly)
	if err != nil {
		t.Fatalf("expected stateless validation without redis, got %v", err)
	}
	if id.User.Email != "offline@example.com" || id.User.Role != RoleBuyer {
		t.Fatalf("unexpected identity: %+v", id.User)
	}
}

func TestStrictModeStoreDownFailsClosed(t *testing.T) {
	engine, env := newTestEngine(t, nil)

	res := mustLogin(t, engine, "strictdown@example.com")
	env.stopRedis()

	_, err := engine.CurrentUser(context.Background(), Credentials{SessionSecret: res.SessionSecret}, ModeStrict)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestHybridFallsBackToSession(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res := mustLogin(t, engine, "hybrid@example.com")

	id, err := engine.CurrentUser(ctx, Credentials{Token: res.Token, SessionSecret: res.SessionSecret}, ModeInherit)
	if err != nil || id.Source != SourceToken {
		t.Fatalf("expected token fast path, got %+v err=%v", id, err)
	}

	id, err = engine.CurrentUser(ctx, Credentials{Token: "tampered." + res.Token, SessionSecret: res.SessionSecret}, ModeHybrid)
	if err != nil || id.Source != SourceSession || id.SessionID != res.Session.ID {
		t.Fatalf("expected session fallback, got %+v err=%v", id, err)
	}

	if _, err := engine.CurrentUser(ctx, Credentials{}, ModeHybrid); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without credentials, got %v", err)
	}
}

func TestStrictModeSeesRoleChanges(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	ctx := context.Background()

	res := mustLogin(t, engine, "promoted@example.com")
	if err := env.users.SetRole(res.User.ID, RoleSupport); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	tokenID, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeTokenOnly)
	if err != nil {
		t.Fatalf("token-only failed: %v", err)
	}
	if tokenID.User.Role != RoleBuyer {
		t.Fatalf("token-only must report the minted role, got %s", tokenID.User.Role)
	}

	// Strict accepts the token alone and loads its session.
	strictID, err := engine.CurrentUser(ctx, Credentials{Token: res.Token}, ModeStrict)
	if err != nil {
		t.Fatalf("strict failed: %v", err)
	}
	if strictID.User.Role != RoleSupport || strictID.Source != SourceSession {
		t.Fatalf("strict must reload the user, got %+v", strictID)
	}
	if err := strictID.RequireRole(RoleSupport); err != nil {
		t.Fatalf("expected support role to pass, got %v", err)
	}
	if err := strictID.RequireRole(RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for admin, got %v", err)
	}
}

func TestCurrentUserInvalidMode(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if _, err := engine.CurrentUser(context.Background(), Credentials{}, ValidationMode(42)); !errors.Is(err, ErrInvalidRouteMode) {
		t.Fatalf("expected ErrInvalidRouteMode, got %v", err)
	}
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if _, _, err := engine.IssueToken(User{ID: "x", Email: "x@example.com", Role: "root"}, "sid"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
