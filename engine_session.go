package otpAuth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateSession persists a new session for user and returns its plaintext
// secret. The secret is never stored and cannot be retrieved again.
func (e *Engine) CreateSession(ctx context.Context, user User) (*SessionGrant, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if user.ID == "" {
		return nil, ErrSessionCreationFailed
	}

	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess := &session.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		SecretHash: internal.DigestSecret(secret),
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		CreatedAt:  now,
		// Whole seconds, matching the token's exp claim.
		ExpiresAt: now.Add(e.config.Session.Horizon).Truncate(time.Second),
	}
	if err := e.sessions.Insert(ctx, sess); err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, storeError(err))
	}

	e.metricInc(MetricSessionCreated)
	return &SessionGrant{Secret: secret, Session: sess}, nil
}

// ResolveSession returns the active session for secret, or nil when the
// secret is malformed, unknown, revoked or expired. Only store failures are
// returned as errors.
func (e *Engine) ResolveSession(ctx context.Context, secret string) (*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !internal.IsSecret(secret) {
		e.metricInc(MetricSessionMiss)
		return nil, nil
	}

	sess, err := e.sessions.FindBySecretHash(ctx, internal.DigestSecret(secret))
	if errors.Is(err, session.ErrNotFound) {
		e.metricInc(MetricSessionMiss)
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !sess.Active(e.now()) {
		e.metricInc(MetricSessionMiss)
		return nil, nil
	}

	e.metricInc(MetricSessionResolved)
	return sess, nil
}

// RevokeSession revokes the session with the given id. Revoking an already
// revoked session succeeds; an unknown id returns ErrSessionNotFound.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return storeError(err)
	}

	if err := e.revoke(ctx, sess); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditLogout, true, auditSubject{userID: sess.UserID, sessionID: sess.ID}, nil, func() map[string]string {
		return map[string]string{"scope": "session"}
	})
	return nil
}

// RevokeAllSessionsForUser revokes every unrevoked session of userID and
// returns how many this call revoked. Other users' sessions are untouched.
func (e *Engine) RevokeAllSessionsForUser(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	now := e.now()
	ids, err := e.sessions.RevokeAllForUser(ctx, userID, now)
	if err != nil {
		return 0, storeError(err)
	}

	for _, id := range ids {
		e.metricInc(MetricSessionRevoked)
		e.denyToken(ctx, id)
	}

	e.emitAudit(ctx, AuditLogout, true, auditSubject{userID: userID}, nil, func() map[string]string {
		return map[string]string{
			"scope":   "all",
			"revoked": strconv.Itoa(len(ids)),
		}
	})
	return len(ids), nil
}

// LogoutAll is the administrator forced logout of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if _, err := e.RevokeAllSessionsForUser(ctx, userID); err != nil {
		return err
	}
	e.metricInc(MetricLogoutAll)
	return nil
}

// Logout revokes the session identified by its plaintext secret. Unknown or
// already revoked secrets succeed without effect.
func (e *Engine) Logout(ctx context.Context, secret string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if !internal.IsSecret(secret) {
		return nil
	}

	sess, err := e.sessions.FindBySecretHash(ctx, internal.DigestSecret(secret))
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeError(err)
	}

	if err := e.revoke(ctx, sess); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, auditSubject{userID: sess.UserID, sessionID: sess.ID}, nil, func() map[string]string {
		return map[string]string{"scope": "session"}
	})
	return nil
}

// ListSessions returns userID's active sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	all, err := e.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	now := e.now()
	out := make([]*session.Session, 0, len(all))
	for _, s := range all {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *Engine) revoke(ctx context.Context, sess *session.Session) error {
	revoked, err := e.sessions.Revoke(ctx, sess.ID, e.now())
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return storeError(err)
	}
	if revoked {
		e.metricInc(MetricSessionRevoked)
	}
	// Re-deny on repeat revocations so a failed denylist write can be retried.
	e.denyToken(ctx, sess.ID)
	return nil
}

// denyToken adds sessionID to the token revocation list until any token
// minted for it has expired. Failures are logged, never returned.
func (e *Engine) denyToken(ctx context.Context, sessionID string) {
	if e.revocations == nil {
		return
	}
	until := e.now().Add(e.tokens.TTL())
	if err := e.revocations.Add(ctx, sessionID, until); err != nil {
		e.logger.Warn("token revocation list write failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
