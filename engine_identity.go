package otpAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/session"
)

// IssueToken mints the stateless token for user, bound to sessionID. The
// token carries its own expiry and stays verifiable after the session is
// revoked unless Token.EnforceRevocation is set.
func (e *Engine) IssueToken(user User, sessionID string) (string, time.Time, error) {
	if e == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	if !user.Role.Valid() {
		return "", time.Time{}, ErrTokenInvalid
	}

	token, expiresAt, err := e.tokens.Encode(jwt.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: sessionID,
	})
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenInvalid, err)
	}

	e.metricInc(MetricTokenIssued)
	return token, expiresAt, nil
}

// DecodeToken verifies signature and expiry only. It returns nil on any
// failure and never consults the session store or revocation list.
func (e *Engine) DecodeToken(token string) *jwt.Claims {
	if e == nil {
		return nil
	}
	claims, err := e.tokens.Decode(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil
	}
	return claims
}

// CurrentUser resolves the caller from creds under mode (ModeInherit uses
// the configured mode).
//
//   - ModeTokenOnly trusts the token alone; roles are those minted at login.
//   - ModeHybrid uses the token when it verifies and falls back to the session.
//   - ModeStrict requires a live session and reloads the user, so revocation
//     and role changes apply immediately.
//
// A missing or invalid credential returns ErrUnauthorized; backend failures
// return ErrStoreUnavailable.
func (e *Engine) CurrentUser(ctx context.Context, creds Credentials, mode ValidationMode) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	mode, err := e.resolveMode(mode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeTokenOnly:
		return e.identityFromToken(ctx, creds.Token)
	case ModeHybrid:
		if creds.Token != "" {
			id, err := e.identityFromToken(ctx, creds.Token)
			if err == nil || errors.Is(err, ErrStoreUnavailable) || creds.SessionSecret == "" {
				return id, err
			}
		}
		return e.identityFromSecret(ctx, creds.SessionSecret)
	default:
		if creds.SessionSecret != "" {
			return e.identityFromSecret(ctx, creds.SessionSecret)
		}
		return e.identityFromTokenSession(ctx, creds.Token)
	}
}

func (e *Engine) identityFromToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims := e.DecodeToken(token)
	if claims == nil {
		return nil, ErrUnauthorized
	}

	if e.config.Token.EnforceRevocation && claims.SessionID != "" && e.revocations != nil {
		revoked, err := e.revocations.Contains(ctx, claims.SessionID)
		if err != nil {
			return nil, storeError(err)
		}
		if revoked {
			e.metricInc(MetricTokenRejected)
			return nil, ErrUnauthorized
		}
	}

	role := Role(claims.Role)
	if !role.Valid() {
		e.metricInc(MetricTokenRejected)
		return nil, ErrUnauthorized
	}

	return &Identity{
		User: User{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  role,
		},
		SessionID: claims.SessionID,
		Source:    SourceToken,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (e *Engine) identityFromSecret(ctx context.Context, secret string) (*Identity, error) {
	if secret == "" {
		return nil, ErrUnauthorized
	}

	sess, err := e.ResolveSession(ctx, secret)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthorized
	}
	return e.identityFromSession(ctx, sess)
}

// identityFromTokenSession verifies the token and then requires its session
// to be live.
func (e *Engine) identityFromTokenSession(ctx context.Context, token string) (*Identity, error) {
	claims := e.DecodeToken(token)
	if claims == nil || claims.SessionID == "" {
		return nil, ErrUnauthorized
	}

	sess, err := e.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		e.metricInc(MetricSessionMiss)
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storeError(err)
	}
	if !sess.Active(e.now()) || sess.UserID != claims.UserID {
		e.metricInc(MetricSessionMiss)
		return nil, ErrUnauthorized
	}

	e.metricInc(MetricSessionResolved)
	return e.identityFromSession(ctx, sess)
}

func (e *Engine) identityFromSession(ctx context.Context, sess *session.Session) (*Identity, error) {
	user, err := e.users.UserByID(ctx, sess.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, storeError(err)
	}

	return &Identity{
		User:      user,
		SessionID: sess.ID,
		Source:    SourceSession,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}
