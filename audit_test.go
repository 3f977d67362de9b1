package otpAuth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type panicSink struct{}

func (panicSink) Emit(context.Context, AuditEvent) {
	panic("sink exploded")
}

func buildAuditTestEngine(t *testing.T, cfg Config, sink AuditSink, logger *zap.Logger) *Engine {
	t.Helper()

	_, env := newTestEngine(t, nil)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(env.rdb).
		WithUserProvider(env.users).
		WithAuditSink(sink).
		WithLogger(logger).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine := buildAuditTestEngine(t, cfg, sink, nil)
	mustLogin(t, engine, "quiet@example.com")

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", got)
	}
}

func TestAuditSinkPanicDoesNotFailLogin(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	engine := buildAuditTestEngine(t, testConfig(), panicSink{}, zap.New(core))

	res := mustLogin(t, engine, "panic@example.com")
	if res.Token == "" {
		t.Fatal("expected login to succeed despite sink panic")
	}
	if logs.Len() == 0 {
		t.Fatal("expected sink panic to be logged")
	}
}

func TestAuditAsyncDeliversOnClose(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Async = true
	cfg.Audit.BufferSize = 64

	sink := &countingSink{}
	engine := buildAuditTestEngine(t, cfg, sink, nil)
	mustLogin(t, engine, "async@example.com")
	engine.Close()

	// otp_request, otp_verify, login
	if got := sink.count.Load(); got != 3 {
		t.Fatalf("expected 3 events after close, got %d", got)
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("expected no drops, got %d", engine.AuditDropped())
	}
}

func TestJSONWriterSinkThroughEngine(t *testing.T) {
	var buf bytes.Buffer
	engine := buildAuditTestEngine(t, testConfig(), NewJSONWriterSink(&buf), nil)

	ctx := clientCtx("192.0.2.44")
	mustRequest(t, engine, ctx, "json@example.com")

	line := strings.TrimSpace(buf.String())
	var event AuditEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("invalid audit JSON %q: %v", line, err)
	}
	if event.Kind != AuditOTPRequest || event.Email != "json@example.com" || event.IP != "192.0.2.44" || event.UserAgent != "otpauth-test/1.0" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if strings.Contains(line, "\"code\"") {
		t.Fatal("audit event must not carry the code")
	}
}

func TestZapAuditSinkThroughEngine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := buildAuditTestEngine(t, testConfig(), NewMultiAuditSink(NewZapAuditSink(zap.New(core)), NoOpSink{}), nil)

	mustRequest(t, engine, clientCtx("192.0.2.45"), "zap@example.com")
	if logs.FilterField(zap.String("kind", AuditOTPRequest)).Len() != 1 {
		t.Fatalf("expected one zap entry for otp_request, got %v", logs.All())
	}
}
