package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// RetentionGrace is how long a session record outlives its expiry in Redis.
const RetentionGrace = 24 * time.Hour

const (
	fieldUserID     = "user_id"
	fieldSecretHash = "secret_hash"
	fieldIP         = "ip"
	fieldUserAgent  = "ua"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
	fieldRevokedAt  = "revoked_at"
)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HSETNX", KEYS[1], "revoked_at", ARGV[1])
`

var revokeLua = redis.NewScript(revokeScript)

// RedisStore keeps each session in a hash, with a digest-to-id pointer and a
// per-user id set.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using keys under prefix ("ss" when empty).
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ss"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) hashKey(secretHash string) string {
	return s.prefix + "h:" + secretHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func retention(sess *Session) time.Duration {
	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	if ttl < 0 {
		ttl = 0
	}
	return ttl + RetentionGrace
}

func (s *RedisStore) Insert(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" || sess.SecretHash == "" {
		return errors.New("session requires id, user id and secret hash")
	}

	ttl := retention(sess)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.sessionKey(sess.ID)
		pipe.HSet(ctx, key, encodeSession(sess))
		pipe.Expire(ctx, key, ttl)
		pipe.Set(ctx, s.hashKey(sess.SecretHash), sess.ID, ttl)
		uk := s.userKey(sess.UserID)
		pipe.SAdd(ctx, uk, sess.ID)
		pipe.Expire(ctx, uk, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) FindBySecretHash(ctx context.Context, secretHash string) (*Session, error) {
	id, err := s.redis.Get(ctx, s.hashKey(secretHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.SecretHash != secretHash {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeSession(id, fields)
}

func (s *RedisStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := revokeLua.Run(ctx, s.redis, []string{s.sessionKey(id)}, now.UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n < 0 {
		return false, ErrNotFound
	}
	return n == 1, nil
}

// RevokeAllForUser runs the single-key revoke script once per indexed
// session so every script touches only the key it declares, which keeps it
// valid on Redis Cluster. Index members whose record is gone are dropped.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]string, error) {
	uk := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, uk).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.Cmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			// EVAL, not EVALSHA: a pipeline cannot fall back on NOSCRIPT.
			cmds[i] = revokeLua.Eval(ctx, pipe, []string{s.sessionKey(id)}, now.UnixMilli())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var revoked, stale []string
	for i, cmd := range cmds {
		switch n, _ := cmd.Int64(); n {
		case 1:
			revoked = append(revoked, ids[i])
		case -1:
			stale = append(stale, ids[i])
		}
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, uk, stale).Err(); err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return revoked, nil
}

func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sess, err := decodeSession(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func encodeSession(sess *Session) map[string]interface{} {
	fields := map[string]interface{}{
		fieldUserID:     sess.UserID,
		fieldSecretHash: sess.SecretHash,
		fieldIP:         sess.IP,
		fieldUserAgent:  sess.UserAgent,
		fieldCreatedAt:  sess.CreatedAt.UnixMilli(),
		fieldExpiresAt:  sess.ExpiresAt.UnixMilli(),
	}
	if sess.RevokedAt != nil {
		fields[fieldRevokedAt] = sess.RevokedAt.UnixMilli()
	}
	return fields
}

func decodeSession(id string, fields map[string]string) (*Session, error) {
	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: invalid created_at: %w", id, err)
	}
	expires, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: invalid expires_at: %w", id, err)
	}

	sess := &Session{
		ID:         id,
		UserID:     fields[fieldUserID],
		SecretHash: fields[fieldSecretHash],
		IP:         fields[fieldIP],
		UserAgent:  fields[fieldUserAgent],
		CreatedAt:  time.UnixMilli(created).UTC(),
		ExpiresAt:  time.UnixMilli(expires).UTC(),
	}

	if raw, ok := fields[fieldRevokedAt]; ok && raw != "" {
		revoked, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session %s: invalid revoked_at: %w", id, err)
		}
		t := time.UnixMilli(revoked).UTC()
		sess.RevokedAt = &t
	}

	return sess, nil
}
