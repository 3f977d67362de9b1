package otpAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/otpAuth/ratelimit"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized      AuditErrorCode = "unauthorized"
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrConsumed          AuditErrorCode = "consumed"
	auditErrExpired           AuditErrorCode = "expired"
	auditErrAttemptsExhausted AuditErrorCode = "attempts_exhausted"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrDisposable        AuditErrorCode = "disposable_email"
	auditErrInvalidToken      AuditErrorCode = "invalid_token"
	auditErrSessionNotFound   AuditErrorCode = "session_not_found"
	auditErrUserNotFound      AuditErrorCode = "user_not_found"
	auditErrSessionCreation   AuditErrorCode = "session_creation_failed"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

type auditSubject struct {
	email     string
	userID    string
	sessionID string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	kind string,
	success bool,
	subject auditSubject,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Kind:      kind,
		Email:     subject.email,
		UserID:    subject.userID,
		SessionID: subject.sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitRateLimit records a denied Decision. The policy name and current count
// are always present in the metadata.
func (e *Engine) emitRateLimit(
	ctx context.Context,
	email string,
	d ratelimit.Decision,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, AuditRateLimit, false, auditSubject{email: email}, &RateLimitError{Policy: d.Policy}, func() map[string]string {
		base := map[string]string{
			"policy": d.Policy,
			"count":  strconv.Itoa(d.Count),
			"limit":  strconv.Itoa(d.Limit),
		}
		if !d.ResetAt.IsZero() {
			base["reset_at"] = d.ResetAt.UTC().Format(timeLayout)
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var verr *VerificationError
	if errors.As(err, &verr) {
		switch verr.Reason {
		case ReasonInvalidCode:
			return auditErrInvalidCode
		case ReasonAttemptsExhausted:
			return auditErrAttemptsExhausted
		default:
			return auditErrNotFound
		}
	}

	switch {
	case errors.Is(err, errChallengeConsumed):
		return auditErrConsumed
	case errors.Is(err, errChallengeExpired):
		return auditErrExpired
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrOTPRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDisposableEmail):
		return auditErrDisposable
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
