package otpAuth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// captureSink records events synchronously.
type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) Kind(kind string) []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []AuditEvent
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	clock     *testClock
	sink      *captureSink
	users     *MemoryUserProvider
	closeOnce sync.Once
}

// stopRedis shuts miniredis down to simulate a backend outage.
func (env *testEnv) stopRedis() {
	env.closeOnce.Do(env.mr.Close)
}

func (env *testEnv) challenge(t *testing.T, id string) *challenge.Challenge {
	t.Helper()
	c, err := challenge.NewRedisStore(env.rdb, 0).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load challenge %s: %v", id, err)
	}
	return c
}

func testConfig() Config {
	cfg := DevelopmentConfig()
	cfg.Audit.Async = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *testEnv) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	env := &testEnv{
		mr:    mr,
		rdb:   rdb,
		clock: newTestClock(),
		sink:  &captureSink{},
		users: NewMemoryUserProvider(RoleBuyer),
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(env.users).
		WithAuditSink(env.sink).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		env.stopRedis()
	})
	return engine, env
}

func clientCtx(ip string) context.Context {
	return WithUserAgent(WithClientIP(context.Background(), ip), "otpauth-test/1.0")
}

// wrongCode returns a well-formed code that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	last := len(b) - 1
	if b[last] == '9' {
		b[last] = '0'
	} else {
		b[last]++
	}
	return string(b)
}

func mustRequest(t *testing.T, engine *Engine, ctx context.Context, email string) *OTPIssue {
	t.Helper()
	issue, err := engine.RequestOTP(ctx, email)
	if err != nil {
		t.Fatalf("RequestOTP(%s) failed: %v", email, err)
	}
	return issue
}

func mustLogin(t *testing.T, engine *Engine, email string) *LoginResult {
	t.Helper()
	ctx := clientCtx("198.51.100.7")
	issue := mustRequest(t, engine, ctx, email)
	res, err := engine.LoginWithOTP(ctx, email, issue.Code)
	if err != nil {
		t.Fatalf("LoginWithOTP(%s) failed: %v", email, err)
	}
	return res
}
