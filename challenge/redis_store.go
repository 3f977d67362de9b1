package challenge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("challenge redis unavailable")

// DefaultRetention is how long challenge records and request indexes are kept
// after creation. It must exceed both the code TTL and the request window.
const DefaultRetention = 24 * time.Hour

const (
	fieldEmail      = "email"
	fieldCodeHash   = "code_hash"
	fieldTokenHash  = "token_hash"
	fieldIP         = "ip"
	fieldUserAgent  = "ua"
	fieldAttempts   = "attempts"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldConsumedAt = "consumed_at"
)

// -1 when the challenge is gone or consumed, -2 when no attempt is left,
// otherwise the new attempts value.
const reserveAttemptScript = `
if redis.call("EXISTS", KEYS[1]) == 0 or redis.call("HEXISTS", KEYS[1], "consumed_at") == 1 then
  return -1
end
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts") or "0")
if attempts >= tonumber(ARGV[1]) then
  return -2
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`

// -1 when the challenge is gone, 1 when this call consumed it, 0 otherwise.
const consumeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HEXISTS", KEYS[1], "consumed_at") == 1 then
  return 0
end
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts") or "0")
if attempts > tonumber(ARGV[2]) then
  return 0
end
redis.call("HSET", KEYS[1], "consumed_at", ARGV[1])
if attempts > 0 then
  redis.call("HINCRBY", KEYS[1], "attempts", -1)
end
return 1
`

var (
	reserveAttemptLua = redis.NewScript(reserveAttemptScript)
	consumeLua        = redis.NewScript(consumeScript)
)

// RedisStore keeps each challenge in a hash and indexes creation times per
// email and per IP in sorted sets.
type RedisStore struct {
	redis     redis.UniversalClient
	retention time.Duration
}

// NewRedisStore returns a store with the given retention. Zero uses DefaultRetention.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{redis: client, retention: retention}
}

func challengeKey(id string) string {
	return "oc:" + id
}

func emailIndexKey(email string) string {
	return "oce:" + email
}

func ipIndexKey(ip string) string {
	return "oci:" + ip
}

func (s *RedisStore) Insert(ctx context.Context, c *Challenge) error {
	if c == nil || c.ID == "" || c.Email == "" {
		return errors.New("challenge requires id and email")
	}

	created := c.CreatedAt.UnixMilli()
	cutoff := strconv.FormatInt(c.CreatedAt.Add(-s.retention).UnixMilli(), 10)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := challengeKey(c.ID)
		pipe.HSet(ctx, key, encodeChallenge(c))
		pipe.Expire(ctx, key, s.retention)

		ek := emailIndexKey(c.Email)
		pipe.ZAdd(ctx, ek, redis.Z{Score: float64(created), Member: c.ID})
		pipe.ZRemRangeByScore(ctx, ek, "-inf", "("+cutoff)
		pipe.Expire(ctx, ek, s.retention)

		if c.IP != "" {
			ik := ipIndexKey(c.IP)
			pipe.ZAdd(ctx, ik, redis.Z{Score: float64(created), Member: c.ID})
			pipe.ZRemRangeByScore(ctx, ik, "-inf", "("+cutoff)
			pipe.Expire(ctx, ik, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, email string) (*Challenge, error) {
	ids, err := s.redis.ZRevRange(ctx, emailIndexKey(email), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.get(ctx, ids[0])
}

func (s *RedisStore) LatestActive(ctx context.Context, email string, now time.Time) (*Challenge, error) {
	ids, err := s.redis.ZRevRange(ctx, emailIndexKey(email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, challengeKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decodeChallenge(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if c.Active(now) {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// Get loads a challenge by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Challenge, error) {
	return s.get(ctx, id)
}

func (s *RedisStore) get(ctx context.Context, id string) (*Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, challengeKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeChallenge(id, fields)
}

func (s *RedisStore) ReserveAttempt(ctx context.Context, id string, limit int) (int, error) {
	n, err := reserveAttemptLua.Run(ctx, s.redis, []string{challengeKey(id)}, limit).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch {
	case n == -2:
		return 0, ErrAttemptsExhausted
	case n < 0:
		return 0, ErrNotFound
	}
	return int(n), nil
}

func (s *RedisStore) Consume(ctx context.Context, id string, now time.Time, limit int) (bool, error) {
	n, err := consumeLua.Run(ctx, s.redis, []string{challengeKey(id)}, now.UnixMilli(), limit).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n < 0 {
		return false, ErrNotFound
	}
	return n == 1, nil
}

func (s *RedisStore) EmailRequestTimes(ctx context.Context, email string, since time.Time) ([]time.Time, error) {
	return s.requestTimes(ctx, emailIndexKey(email), since)
}

func (s *RedisStore) IPRequestTimes(ctx context.Context, ip string, since time.Time) ([]time.Time, error) {
	return s.requestTimes(ctx, ipIndexKey(ip), since)
}

func (s *RedisStore) requestTimes(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	zs, err := s.redis.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	times := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		times = append(times, time.UnixMilli(int64(z.Score)).UTC())
	}
	return times, nil
}

func encodeChallenge(c *Challenge) map[string]interface{} {
	fields := map[string]interface{}{
		fieldEmail:     c.Email,
		fieldCodeHash:  c.CodeHash,
		fieldTokenHash: c.TokenHash,
		fieldIP:        c.IP,
		fieldUserAgent: c.UserAgent,
		fieldAttempts:  c.Attempts,
		fieldCreatedAt: c.CreatedAt.UnixMilli(),
		fieldExpiresAt: c.ExpiresAt.UnixMilli(),
	}
	if c.ConsumedAt != nil {
		fields[fieldConsumedAt] = c.ConsumedAt.UnixMilli()
	}
	return fields
}

func decodeChallenge(id string, fields map[string]string) (*Challenge, error) {
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("challenge %s: invalid attempts: %w", id, err)
	}
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: invalid created_at: %w", id, err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: invalid expires_at: %w", id, err)
	}

	c := &Challenge{
		ID:        id,
		Email:     fields[fieldEmail],
		CodeHash:  fields[fieldCodeHash],
		TokenHash: fields[fieldTokenHash],
		IP:        fields[fieldIP],
		UserAgent: fields[fieldUserAgent],
		Attempts:  attempts,
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}

	if raw, ok := fields[fieldConsumedAt]; ok && raw != "" {
		consumed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("challenge %s: invalid consumed_at: %w", id, err)
		}
		t := time.UnixMilli(consumed).UTC()
		c.ConsumedAt = &t
	}

	return c, nil
}
