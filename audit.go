package otpAuth

import (
	"io"

	"github.com/MrEthical07/otpAuth/internal/audit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Audit event kinds.
const (
	AuditOTPRequest = "otp_request"
	AuditOTPVerify  = "otp_verify"
	AuditLogin      = "login"
	AuditLogout     = "logout"
	AuditRateLimit  = "rate_limit"
	AuditOTPExpired = "otp_expired"
	AuditOTPDenied  = "otp_denied"
)

// AuditEvent is a single append-only security record.
type AuditEvent = audit.Event

// AuditSink receives audit events. Sinks swallow their own failures.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON event per line to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapAuditSink logs each event as a structured zap entry.
func NewZapAuditSink(logger *zap.Logger) AuditSink {
	return audit.NewZapSink(logger)
}

// NewRedisStreamAuditSink appends events to a Redis stream trimmed to about maxLen entries.
func NewRedisStreamAuditSink(client redis.UniversalClient, stream string, maxLen int64, logger *zap.Logger) AuditSink {
	return audit.NewRedisStreamSink(client, stream, maxLen, logger)
}

// NewMultiAuditSink fans each event out to every sink in order.
func NewMultiAuditSink(sinks ...AuditSink) AuditSink {
	return audit.MultiSink(sinks)
}
