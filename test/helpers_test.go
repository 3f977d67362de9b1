//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIntegrationEngine(t *testing.T, mutate func(*otpAuth.Config)) (*otpAuth.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := otpAuth.DevelopmentConfig()
	cfg.Audit.Async = false
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := otpAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(otpAuth.NewMemoryUserProvider(otpAuth.RoleBuyer)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
	})
	return engine, mr
}

func clientCtx() context.Context {
	return otpAuth.WithClientIP(context.Background(), "203.0.113.10")
}

func login(t *testing.T, engine *otpAuth.Engine, email string) *otpAuth.LoginResult {
	t.Helper()
	ctx := clientCtx()
	issue, err := engine.RequestOTP(ctx, email)
	if err != nil {
		t.Fatalf("RequestOTP failed: %v", err)
	}
	res, err := engine.LoginWithOTP(ctx, email, issue.Code)
	if err != nil {
		t.Fatalf("LoginWithOTP failed: %v", err)
	}
	return res
}
