package postgres

import (
	"context"
	"encoding/json"

	otpAuth "github.com/MrEthical07/otpAuth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditSink appends audit events to auth_audit_events. Write failures are
// logged and dropped.
type AuditSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditSink(db *gorm.DB, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{db: db, logger: logger}
}

func (s *AuditSink) Emit(ctx context.Context, event otpAuth.AuditEvent) {
	rec := auditModelOf(event)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Warn("audit insert failed", zap.String("kind", event.Kind), zap.Error(err))
	}
}

func auditModelOf(event otpAuth.AuditEvent) auditEventModel {
	rec := auditEventModel{
		OccurredAt: event.Timestamp.UTC(),
		Kind:       event.Kind,
		Email:      event.Email,
		UserID:     event.UserID,
		SessionID:  event.SessionID,
		IPAddress:  event.IP,
		UserAgent:  event.UserAgent,
		Success:    event.Success,
		ErrorCode:  event.Error,
	}
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			meta := string(raw)
			rec.Metadata = &meta
		}
	}
	return rec
}
