//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := os.Getenv("OTPAUTH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OTPAUTH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := Connect(ctx, url, 4, logger)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db, logger))
	require.NoError(t, RunMigrations(ctx, db, logger), "migrations must be re-runnable")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newChallenge(email string, created time.Time) *challenge.Challenge {
	return &challenge.Challenge{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  "code",
		TokenHash: "token",
		IP:        "198.51.100.9",
		CreatedAt: created,
		ExpiresAt: created.Add(10 * time.Minute),
	}
}

func TestChallengeStoreLifecycle(t *testing.T) {
	store := NewChallengeStore(testDB(t))
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	now := time.Now().UTC().Truncate(time.Microsecond)

	older := newChallenge(email, now.Add(-time.Minute))
	newer := newChallenge(email, now)
	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))

	got, err := store.LatestActive(ctx, email, now)
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)

	ok, err := store.Consume(ctx, newer.ID, now, 10)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Consume(ctx, newer.ID, now, 10)
	require.NoError(t, err)
	require.False(t, ok)

	got, err = store.LatestActive(ctx, email, now)
	require.NoError(t, err)
	require.Equal(t, older.ID, got.ID)

	_, err = store.LatestActive(ctx, email, now.Add(time.Hour))
	require.ErrorIs(t, err, challenge.ErrNotFound)

	times, err := store.EmailRequestTimes(ctx, email, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.True(t, times[0].Before(times[1]))

	_, err = store.Consume(ctx, "missing", now, 10)
	require.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestChallengeStoreReserveAttemptCap(t *testing.T) {
	store := NewChallengeStore(testDB(t))
	ctx := context.Background()
	c := newChallenge(uuid.NewString()+"@example.com", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, c))

	const (
		workers = 20
		max     = 10
	)
	seen := make(chan int, workers)
	var exhausted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.ReserveAttempt(ctx, c.ID, max)
			switch {
			case err == nil:
				seen <- n
			case errors.Is(err, challenge.ErrAttemptsExhausted):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(seen)

	distinct := make(map[int]bool)
	for n := range seen {
		distinct[n] = true
	}
	require.Len(t, distinct, max)
	require.EqualValues(t, workers-max, exhausted.Load())

	ok, err := store.Consume(ctx, c.ID, time.Now().UTC(), max)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, max-1, got.Attempts)

	_, err = store.ReserveAttempt(ctx, c.ID, max)
	require.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestChallengeStoreConsumeRefusesOverLimit(t *testing.T) {
	store := NewChallengeStore(testDB(t))
	ctx := context.Background()
	c := newChallenge(uuid.NewString()+"@example.com", time.Now().UTC())
	c.Attempts = 3
	require.NoError(t, store.Insert(ctx, c))

	ok, err := store.Consume(ctx, c.ID, time.Now().UTC(), 2)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, got.ConsumedAt)
}

func TestSessionStoreRevokeAll(t *testing.T) {
	store := NewSessionStore(testDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	user := uuid.NewString()
	other := uuid.NewString()

	mk := func(uid string) *session.Session {
		return &session.Session{
			ID:         uuid.NewString(),
			UserID:     uid,
			SecretHash: uuid.NewString(),
			CreatedAt:  now,
			ExpiresAt:  now.Add(session.Horizon),
		}
	}
	a, b, c := mk(user), mk(user), mk(other)
	for _, s := range []*session.Session{a, b, c} {
		require.NoError(t, store.Insert(ctx, s))
	}

	ok, err := store.Revoke(ctx, a.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := store.RevokeAllForUser(ctx, user, now)
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, ids)

	got, err := store.FindBySecretHash(ctx, c.SecretHash)
	require.NoError(t, err)
	require.Nil(t, got.RevokedAt)

	_, err = store.Revoke(ctx, "missing", now)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRevocationList(t *testing.T) {
	now := time.Now().UTC()
	list := NewRevocationList(testDB(t), func() time.Time { return now })
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, list.Add(ctx, id, now.Add(-time.Second)))
	ok, err := list.Contains(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, list.Add(ctx, id, now.Add(time.Hour)))
	require.NoError(t, list.Add(ctx, id, now.Add(time.Minute)))
	ok, err = list.Contains(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserDirectory(t *testing.T) {
	dir := NewUserDirectory(testDB(t), otpAuth.RoleBuyer)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	first, err := dir.FindOrCreateByEmail(ctx, email)
	require.NoError(t, err)
	again, err := dir.FindOrCreateByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	require.NoError(t, dir.SetRole(ctx, first.ID, otpAuth.RoleAdmin))
	got, err := dir.UserByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, otpAuth.RoleAdmin, got.Role)

	_, err = dir.UserByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, otpAuth.ErrUserNotFound)
}

func TestAuditSinkInsert(t *testing.T) {
	db := testDB(t)
	sink := NewAuditSink(db, zaptest.NewLogger(t))
	email := uuid.NewString() + "@example.com"

	sink.Emit(context.Background(), otpAuth.AuditEvent{
		Timestamp: time.Now().UTC(),
		Kind:      otpAuth.AuditOTPRequest,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"challenge_id": "c1"},
	})

	var n int64
	require.NoError(t, db.Model(&auditEventModel{}).Where("email = ?", email).Count(&n).Error)
	require.EqualValues(t, 1, n)
}
