package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb, 0)
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newChallenge(id, email, ip string, created time.Time) *Challenge {
	return &Challenge{
		ID:        id,
		Email:     email,
		CodeHash:  "code-hash-" + id,
		TokenHash: "token-hash-" + id,
		IP:        ip,
		UserAgent: "test-agent",
		CreatedAt: created,
		ExpiresAt: created.Add(10 * time.Minute),
	}
}

func TestRedisStoreInsertAndLatest(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx, "a@example.com")
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "10.0.0.1", base)))
	require.NoError(t, s.Insert(ctx, newChallenge("c2", "a@example.com", "10.0.0.1", base.Add(time.Minute))))

	got, err := s.Latest(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "c2", got.ID)
	require.Equal(t, "a@example.com", got.Email)
	require.Equal(t, "code-hash-c2", got.CodeHash)
	require.Equal(t, "token-hash-c2", got.TokenHash)
	require.Equal(t, "10.0.0.1", got.IP)
	require.Equal(t, "test-agent", got.UserAgent)
	require.Zero(t, got.Attempts)
	require.Nil(t, got.ConsumedAt)
	require.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))
	require.True(t, got.ExpiresAt.Equal(base.Add(11*time.Minute)))
}

func TestRedisStoreLatestActiveSkipsConsumedAndExpired(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newChallenge("old", "a@example.com", "", base)))
	require.NoError(t, s.Insert(ctx, newChallenge("new", "a@example.com", "", base.Add(2*time.Minute))))

	now := base.Add(3 * time.Minute)
	got, err := s.LatestActive(ctx, "a@example.com", now)
	require.NoError(t, err)
	require.Equal(t, "new", got.ID)

	ok, err := s.Consume(ctx, "new", now, 10)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = s.LatestActive(ctx, "a@example.com", now)
	require.NoError(t, err)
	require.Equal(t, "old", got.ID)

	_, err = s.LatestActive(ctx, "a@example.com", base.Add(10*time.Minute))
	require.True(t, errors.Is(err, ErrNotFound))

	latest, err := s.Latest(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "new", latest.ID)
	require.NotNil(t, latest.ConsumedAt)
	require.Equal(t, StateConsumed, StateOf(latest, now, 10))
}

func TestRedisStoreConsumeOnce(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "", base)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Consume(ctx, "c1", base.Add(time.Second), 10)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())

	_, err := s.Consume(ctx, "missing", base, 10)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStoreReserveAttemptCapsConcurrentCallers(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "", base)))

	const (
		workers = 25
		max     = 10
	)
	seen := make([]int, workers)
	var exhausted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.ReserveAttempt(ctx, "c1", max)
			switch {
			case err == nil:
				seen[i] = n
			case errors.Is(err, ErrAttemptsExhausted):
				exhausted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, max, got.Attempts)
	require.Equal(t, int32(workers-max), exhausted.Load())

	unique := map[int]bool{}
	for _, n := range seen {
		if n > 0 {
			unique[n] = true
		}
	}
	require.Len(t, unique, max)

	_, err = s.ReserveAttempt(ctx, "missing", max)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStoreConsumeReleasesReservation(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "", base)))

	n, err := s.ReserveAttempt(ctx, "c1", 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ok, err := s.Consume(ctx, "c1", base.Add(time.Second), 10)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Zero(t, got.Attempts)
	require.NotNil(t, got.ConsumedAt)

	_, err = s.ReserveAttempt(ctx, "c1", 10)
	require.True(t, errors.Is(err, ErrNotFound), "consumed challenges accept no further attempts")
}

func TestRedisStoreConsumeRefusesOverLimit(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "", base)))
	mr.HSet(challengeKey("c1"), fieldAttempts, "11")

	ok, err := s.Consume(ctx, "c1", base.Add(time.Second), 10)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, got.ConsumedAt)
	require.Equal(t, 11, got.Attempts)
}

func TestRedisStoreRequestTimes(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("user%d@example.com", i%2)
		require.NoError(t, s.Insert(ctx, newChallenge(fmt.Sprintf("c%d", i), email, "192.0.2.1", base.Add(time.Duration(i)*10*time.Minute))))
	}

	times, err := s.EmailRequestTimes(ctx, "user0@example.com", base)
	require.NoError(t, err)
	require.Len(t, times, 3)
	require.True(t, times[0].Equal(base))

	times, err = s.EmailRequestTimes(ctx, "user0@example.com", base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, times, 2)

	times, err = s.IPRequestTimes(ctx, "192.0.2.1", base.Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		require.False(t, times[i].Before(times[i-1]))
	}

	times, err = s.IPRequestTimes(ctx, "192.0.2.99", base)
	require.NoError(t, err)
	require.Empty(t, times)
}

func TestRedisStoreRetentionTrimsIndex(t *testing.T) {
	mr, s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newChallenge("c1", "a@example.com", "", base)))
	require.NoError(t, s.Insert(ctx, newChallenge("c2", "a@example.com", "", base.Add(25*time.Hour))))

	members, err := mr.ZMembers(emailIndexKey("a@example.com"))
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, members)
	require.Greater(t, mr.TTL(challengeKey("c2")), time.Duration(0))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, s := newTestStore(t)
	mr.Close()

	err := s.Insert(context.Background(), newChallenge("c1", "a@example.com", "", base))
	require.True(t, errors.Is(err, ErrRedisUnavailable))
}
