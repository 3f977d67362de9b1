package session

import (
	"context"
	"testing"
	"time"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestRedisRevocationList(t *testing.T) {
	mr, rdb := newTestRedis(t)
	clock := &manualClock{now: base}
	list := NewRedisRevocationList(rdb, "", clock.Now)
	ctx := context.Background()

	if err := list.Add(ctx, "s1", base.Add(time.Hour)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := list.Add(ctx, "s2", base.Add(-time.Second)); err != nil {
		t.Fatalf("add past deadline: %v", err)
	}

	if ok, err := list.Contains(ctx, "s1"); err != nil || !ok {
		t.Fatalf("contains s1: ok=%v err=%v", ok, err)
	}
	if ok, err := list.Contains(ctx, "s2"); err != nil || ok {
		t.Fatalf("contains s2: ok=%v err=%v", ok, err)
	}
	if ok, err := list.Contains(ctx, ""); err != nil || ok {
		t.Fatalf("contains empty: ok=%v err=%v", ok, err)
	}

	mr.FastForward(time.Hour)
	if ok, err := list.Contains(ctx, "s1"); err != nil || ok {
		t.Fatalf("expected entry to expire: ok=%v err=%v", ok, err)
	}
}

func TestMemoryRevocationList(t *testing.T) {
	clock := &manualClock{now: base}
	list := NewMemoryRevocationList(clock.Now)
	ctx := context.Background()

	_ = list.Add(ctx, "s1", base.Add(time.Minute))
	_ = list.Add(ctx, "s1", base.Add(30*time.Second))

	clock.now = base.Add(45 * time.Second)
	if ok, _ := list.Contains(ctx, "s1"); !ok {
		t.Fatal("expected the later deadline to be kept")
	}

	clock.now = base.Add(time.Minute)
	if ok, _ := list.Contains(ctx, "s1"); ok {
		t.Fatal("expected entry to lapse at its deadline")
	}
}
