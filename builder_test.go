package otpAuth

import (
	"context"
	"testing"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresUserProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}
}

func TestBuildRequiresStores(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithUserProvider(NewMemoryUserProvider(RoleBuyer)).
		Build()
	if err == nil {
		t.Fatal("expected error without redis or stores")
	}
}

func TestBuildOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserProvider(NewMemoryUserProvider(RoleBuyer))
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildWithExplicitStores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.Token.EnforceRevocation = true
	cfg.RateLimit.VerifyIPLimit = 5

	engine, err := New().
		WithConfig(cfg).
		WithChallengeStore(challenge.NewRedisStore(rdb, 0)).
		WithSessionStore(session.NewRedisStore(rdb, "custom")).
		WithRevocationList(session.NewMemoryRevocationList(nil)).
		WithCounter(ratelimit.NewMemoryCounter(nil)).
		WithUserProvider(NewMemoryUserProvider(RoleSeller)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	res := mustLogin(t, engine, "custom@example.com")
	if res.User.Role != RoleSeller {
		t.Fatalf("expected provider default role, got %s", res.User.Role)
	}
	if n := len(mr.Keys()); n == 0 {
		t.Fatal("expected records in redis")
	}
	if !mr.Exists("custom:" + res.Session.ID) {
		t.Fatalf("expected session under custom prefix, keys=%v", mr.Keys())
	}
	if err := engine.RevokeSession(context.Background(), res.Session.ID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := engine.CurrentUser(context.Background(), Credentials{Token: res.Token}, ModeTokenOnly); err == nil {
		t.Fatal("expected memory revocation list to reject the token")
	}
}

func TestBuildEnforceRevocationNeedsList(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.Token.EnforceRevocation = true

	_, err := New().
		WithConfig(cfg).
		WithChallengeStore(challenge.NewRedisStore(rdb, 0)).
		WithSessionStore(session.NewRedisStore(rdb, "")).
		WithUserProvider(NewMemoryUserProvider(RoleBuyer)).
		Build()
	if err == nil {
		t.Fatal("expected error without a revocation list")
	}
}

func TestBuildDevelopmentKeyFallback(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if string(engine.config.Token.SigningKey) != string(devSigningKey) {
		t.Fatal("expected development key outside production")
	}
}
