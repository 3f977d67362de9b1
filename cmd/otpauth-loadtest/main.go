package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const maxAttempts = 10

func main() {
	var (
		sessions    = flag.Int("sessions", 50000, "number of sessions and challenges to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ss", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	sessStore := session.NewRedisStore(client, *prefix)
	chStore := challenge.NewRedisStore(client, time.Hour)

	fmt.Printf("seeding %d sessions and challenges...\n", *sessions)
	startSeed := time.Now()
	digests, sessionIDs, challengeIDs, err := seed(ctx, sessStore, chStore, *sessions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolve := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := sessStore.FindBySecretHash(ctx, digests[r.Intn(len(digests))])
		return err
	})

	// Exhausted reservations are the expected outcome once a challenge is
	// hot; only the number of successful reservations per challenge matters.
	var reserved sync.Map
	attempts := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		id := challengeIDs[r.Intn(len(challengeIDs))]
		_, err := chStore.ReserveAttempt(ctx, id, maxAttempts)
		if errors.Is(err, challenge.ErrAttemptsExhausted) {
			return nil
		}
		if err == nil {
			n, _ := reserved.LoadOrStore(id, new(int64))
			atomic.AddInt64(n.(*int64), 1)
		}
		return err
	})

	// Every session is revoked by two workers; exactly one must win.
	var wins int64
	revokeOps := len(sessionIDs) * 2
	now := time.Now()
	revoke := runPhase(revokeOps, *concurrency, func(_ *rand.Rand, i int) error {
		ok, err := sessStore.Revoke(ctx, sessionIDs[i/2], now)
		if ok {
			atomic.AddInt64(&wins, 1)
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolve)
	printStats("reserve_attempt", attempts)
	printStats("revoke", revoke)

	var overflow int
	reserved.Range(func(_, v any) bool {
		if atomic.LoadInt64(v.(*int64)) > maxAttempts {
			overflow++
		}
		return true
	})
	if overflow > 0 {
		fmt.Fprintf(os.Stderr, "reserve_attempt: %d challenges exceeded %d reservations\n", overflow, maxAttempts)
		os.Exit(1)
	}
	if int(wins) != len(sessionIDs) {
		fmt.Fprintf(os.Stderr, "revoke: %d winning revocations for %d sessions\n", wins, len(sessionIDs))
		os.Exit(1)
	}
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, sessStore *session.RedisStore, chStore *challenge.RedisStore, n int) (digests, sessionIDs, challengeIDs []string, err error) {
	now := time.Now()
	digests = make([]string, n)
	sessionIDs = make([]string, n)
	challengeIDs = make([]string, n)

	for i := 0; i < n; i++ {
		secret, err := internal.NewSecret()
		if err != nil {
			return nil, nil, nil, err
		}
		digests[i] = internal.DigestSecret(secret)
		sessionIDs[i] = fmt.Sprintf("sid-%d", i)
		challengeIDs[i] = fmt.Sprintf("cid-%d", i)

		err = sessStore.Insert(ctx, &session.Session{
			ID:         sessionIDs[i],
			UserID:     fmt.Sprintf("u-%d", i%1000),
			SecretHash: digests[i],
			CreatedAt:  now,
			ExpiresAt:  now.Add(session.Horizon),
		})
		if err != nil {
			return nil, nil, nil, err
		}

		err = chStore.Insert(ctx, &challenge.Challenge{
			ID:        challengeIDs[i],
			Email:     fmt.Sprintf("load-%d@example.com", i),
			CodeHash:  "seed",
			TokenHash: "seed",
			CreatedAt: now,
			ExpiresAt: now.Add(10 * time.Minute),
		})
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return digests, sessionIDs, challengeIDs, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
