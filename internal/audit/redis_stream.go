package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStreamMaxLen caps the audit stream length (approximate trimming).
const DefaultStreamMaxLen = 100000

// RedisStreamSink appends events to a Redis stream with XADD.
type RedisStreamSink struct {
	redis   redis.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisStreamSink returns a sink writing to stream. A maxLen <= 0 uses
// DefaultStreamMaxLen.
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64, logger *zap.Logger) *RedisStreamSink {
	if stream == "" {
		stream = "otpauth:audit"
	}
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStreamSink{
		redis:   client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func (s *RedisStreamSink) Emit(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	values := map[string]interface{}{
		"ts":      event.Timestamp.UnixMilli(),
		"kind":    event.Kind,
		"success": strconv.FormatBool(event.Success),
	}
	if event.Email != "" {
		values["email"] = event.Email
	}
	if event.UserID != "" {
		values["user_id"] = event.UserID
	}
	if event.SessionID != "" {
		values["session_id"] = event.SessionID
	}
	if event.IP != "" {
		values["ip"] = event.IP
	}
	if event.UserAgent != "" {
		values["user_agent"] = event.UserAgent
	}
	if event.Error != "" {
		values["error"] = event.Error
	}
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			values["metadata"] = string(raw)
		}
	}

	err := s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		s.logger.Warn("audit stream append failed", zap.String("stream", s.stream), zap.String("kind", event.Kind), zap.Error(err))
	}
}
