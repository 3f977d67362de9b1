package otpAuth

import (
	"context"
	"errors"
)

// LoginWithOTP verifies code, resolves or creates the user for the verified
// email, opens a session and mints the paired stateless token.
//
// A failed verification returns a *VerificationError; rate limiting returns a
// *RateLimitError.
func (e *Engine) LoginWithOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := e.VerifyOTP(ctx, email, code)
	return e.completeLogin(ctx, "code", res, err)
}

// LoginWithMagicLink is LoginWithOTP for the magic-link token.
func (e *Engine) LoginWithMagicLink(ctx context.Context, email, token string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := e.VerifyMagicLink(ctx, email, token)
	return e.completeLogin(ctx, "magic_link", res, err)
}

func (e *Engine) completeLogin(ctx context.Context, method string, res *VerifyResult, err error) (*LoginResult, error) {
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}
	if !res.OK {
		e.metricInc(MetricLoginFailure)
		return nil, &VerificationError{Reason: res.Reason}
	}

	subject := auditSubject{email: res.Email}
	meta := func() map[string]string {
		return map[string]string{
			"method":       method,
			"challenge_id": res.ChallengeID,
		}
	}

	user, err := e.users.FindOrCreateByEmail(ctx, res.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			err = storeError(err)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLogin, false, subject, err, meta)
		return nil, err
	}
	subject.userID = user.ID

	grant, err := e.CreateSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLogin, false, subject, err, meta)
		return nil, err
	}
	subject.sessionID = grant.Session.ID

	token, expiresAt, err := e.IssueToken(user, grant.Session.ID)
	if err != nil {
		// Roll back the session.
		_, _ = e.sessions.Revoke(ctx, grant.Session.ID, e.now())
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLogin, false, subject, err, meta)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLogin, true, subject, nil, meta)

	return &LoginResult{
		User:           user,
		SessionSecret:  grant.Secret,
		Session:        grant.Session,
		Token:          token,
		TokenExpiresAt: expiresAt,
	}, nil
}
