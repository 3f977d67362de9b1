package otpAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/internal/emailcheck"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit-only distinctions. Callers always see ReasonNotFound for these.
var (
	errChallengeConsumed = errors.New("challenge consumed")
	errChallengeExpired  = errors.New("challenge expired")
)

// RequestOTP issues a new challenge for email. The caller's IP and
// User-Agent are read from ctx (see WithClientIP, WithUserAgent).
//
// The per-email cap, per-IP cap and cooldown are evaluated in that order; the
// first violation returns a *RateLimitError and is audited as rate_limit.
// On success the plaintext code and magic token are returned for out-of-band
// delivery; only their hashes are stored.
func (e *Engine) RequestOTP(ctx context.Context, email string) (*OTPIssue, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	normalized, err := emailcheck.Validate(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	disposable := emailcheck.IsDisposable(normalized)
	if disposable && e.config.OTP.DisposablePolicy == DisposableReject {
		return nil, ErrDisposableEmail
	}

	ip := clientIPFromContext(ctx)
	now := e.now()

	decision, err := e.otpPolicy.CheckRequest(ctx, normalized, ip, now)
	if err != nil {
		return nil, storeError(err)
	}
	if !decision.Allowed {
		e.metricInc(MetricOTPRateLimited)
		e.emitRateLimit(ctx, normalized, decision, nil)
		return nil, rateLimitError(decision)
	}

	code, err := internal.NewOTP(e.config.OTP.CodeDigits)
	if err != nil {
		return nil, err
	}
	magic, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}
	codeHash, err := e.hash(code)
	if err != nil {
		return nil, err
	}
	tokenHash, err := e.hash(magic)
	if err != nil {
		return nil, err
	}

	c := &challenge.Challenge{
		ID:        uuid.NewString(),
		Email:     normalized,
		CodeHash:  codeHash,
		TokenHash: tokenHash,
		IP:        ip,
		UserAgent: userAgentFromContext(ctx),
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.OTP.CodeTTL),
	}
	if err := e.challenges.Insert(ctx, c); err != nil {
		return nil, storeError(err)
	}

	e.metricInc(MetricOTPRequested)
	e.emitAudit(ctx, AuditOTPRequest, true, auditSubject{email: normalized}, nil, func() map[string]string {
		return map[string]string{
			"challenge_id": c.ID,
			"disposable":   strconv.FormatBool(disposable),
		}
	})

	return &OTPIssue{
		ChallengeID: c.ID,
		Email:       normalized,
		Code:        code,
		MagicToken:  magic,
		ExpiresAt:   c.ExpiresAt,
		Disposable:  disposable,
	}, nil
}

// VerifyOTP checks code against the most recent active challenge for email.
//
// Verification failures are reported in the result, not as errors: a missing,
// expired or already-consumed challenge all yield ReasonNotFound. A malformed
// code returns ErrInvalidCode without touching the attempts counter. The call
// that pushes attempts to the maximum returns ReasonAttemptsExhausted and is
// audited as rate_limit; later calls are denied even with the correct code.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	normalized, err := emailcheck.Validate(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if !internal.IsOTP(code, e.config.OTP.CodeDigits) {
		return nil, ErrInvalidCode
	}

	return e.verifyChallenge(ctx, normalized, "code", func(c *challenge.Challenge) bool {
		return e.verify(code, c.CodeHash)
	})
}

// VerifyMagicLink is VerifyOTP for the magic-link token. Consuming the
// challenge through either credential invalidates the other.
func (e *Engine) VerifyMagicLink(ctx context.Context, email, token string) (*VerifyResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	normalized, err := emailcheck.Validate(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if !internal.IsSecret(token) {
		return nil, ErrInvalidCode
	}

	return e.verifyChallenge(ctx, normalized, "magic_link", func(c *challenge.Challenge) bool {
		return e.verify(token, c.TokenHash)
	})
}

func (e *Engine) verifyChallenge(
	ctx context.Context,
	email string,
	method string,
	matches func(*challenge.Challenge) bool,
) (*VerifyResult, error) {
	if err := e.throttleVerify(ctx, email); err != nil {
		return nil, err
	}

	now := e.now()
	subject := auditSubject{email: email}

	c, err := e.challenges.LatestActive(ctx, email, now)
	if errors.Is(err, challenge.ErrNotFound) {
		e.auditMissingChallenge(ctx, email)
		return e.verifyFailed(ReasonNotFound, "", email), nil
	}
	if err != nil {
		return nil, storeError(err)
	}

	meta := func(attempts int) func() map[string]string {
		return func() map[string]string {
			return map[string]string{
				"challenge_id": c.ID,
				"method":       method,
				"attempts":     strconv.Itoa(attempts),
			}
		}
	}

	maxAttempts := e.otpPolicy.Config().MaxAttempts

	// The attempt is reserved before the hash compare so concurrent
	// verifiers can never compare more than maxAttempts guesses.
	attempts, err := e.challenges.ReserveAttempt(ctx, c.ID, maxAttempts)
	switch {
	case errors.Is(err, challenge.ErrAttemptsExhausted):
		e.emitAudit(ctx, AuditOTPDenied, false, subject, &VerificationError{Reason: ReasonAttemptsExhausted}, meta(maxAttempts))
		return e.verifyFailed(ReasonAttemptsExhausted, c.ID, email), nil
	case errors.Is(err, challenge.ErrNotFound):
		e.emitAudit(ctx, AuditOTPDenied, false, subject, &VerificationError{Reason: ReasonNotFound}, meta(c.Attempts))
		return e.verifyFailed(ReasonNotFound, c.ID, email), nil
	case err != nil:
		return nil, storeError(err)
	}

	if matches(c) {
		consumed, err := e.challenges.Consume(ctx, c.ID, now, maxAttempts)
		if err != nil && !errors.Is(err, challenge.ErrNotFound) {
			return nil, storeError(err)
		}
		if !consumed {
			// Lost the race against a concurrent verifier.
			e.emitAudit(ctx, AuditOTPDenied, false, subject, errChallengeConsumed, meta(attempts))
			return e.verifyFailed(ReasonNotFound, c.ID, email), nil
		}

		e.metricInc(MetricOTPVerifySuccess)
		if method == "magic_link" {
			e.metricInc(MetricMagicLinkSuccess)
		}
		// Consume hands the winning reservation back.
		e.emitAudit(ctx, AuditOTPVerify, true, subject, nil, meta(attempts-1))
		return &VerifyResult{OK: true, ChallengeID: c.ID, Email: email}, nil
	}

	reason := ReasonInvalidCode
	if attempts >= maxAttempts {
		reason = ReasonAttemptsExhausted
	}
	e.emitAudit(ctx, AuditOTPDenied, false, subject, &VerificationError{Reason: ReasonInvalidCode}, meta(attempts))

	if e.otpPolicy.Exhausts(attempts) {
		e.metricInc(MetricOTPAttemptsExhausted)
		e.emitRateLimit(ctx, email, e.otpPolicy.CheckAttempts(attempts), func() map[string]string {
			return map[string]string{"challenge_id": c.ID}
		})
	}

	return e.verifyFailed(reason, c.ID, email), nil
}

// throttleVerify applies the optional per-IP verification window. Counter
// failures are logged and do not block verification.
func (e *Engine) throttleVerify(ctx context.Context, email string) error {
	if e.verifyIP == nil {
		return nil
	}
	ip := clientIPFromContext(ctx)
	if ip == "" {
		return nil
	}

	d, err := e.verifyIP.Allow(ctx, ip)
	if err != nil {
		e.logger.Warn("verify throttle unavailable", zap.Error(err))
		return nil
	}
	if !d.Allowed {
		e.emitRateLimit(ctx, email, d, nil)
		return rateLimitError(d)
	}
	return nil
}

// auditMissingChallenge distinguishes expired from absent or consumed
// challenges in the audit trail only.
func (e *Engine) auditMissingChallenge(ctx context.Context, email string) {
	subject := auditSubject{email: email}

	latest, err := e.challenges.Latest(ctx, email)
	if err != nil {
		e.emitAudit(ctx, AuditOTPDenied, false, subject, &VerificationError{Reason: ReasonNotFound}, nil)
		return
	}

	meta := func() map[string]string {
		return map[string]string{"challenge_id": latest.ID}
	}
	switch challenge.StateOf(latest, e.now(), e.otpPolicy.Config().MaxAttempts) {
	case challenge.StateExpired:
		e.metricInc(MetricOTPExpired)
		e.emitAudit(ctx, AuditOTPExpired, false, subject, errChallengeExpired, meta)
	case challenge.StateConsumed:
		e.emitAudit(ctx, AuditOTPDenied, false, subject, errChallengeConsumed, meta)
	default:
		e.emitAudit(ctx, AuditOTPDenied, false, subject, &VerificationError{Reason: ReasonNotFound}, meta)
	}
}

func (e *Engine) verifyFailed(reason VerifyReason, challengeID, email string) *VerifyResult {
	e.metricInc(MetricOTPVerifyFailure)
	return &VerifyResult{Reason: reason, ChallengeID: challengeID, Email: email}
}

func rateLimitError(d ratelimit.Decision) *RateLimitError {
	return &RateLimitError{
		Policy:  d.Policy,
		Count:   d.Count,
		Limit:   d.Limit,
		ResetAt: d.ResetAt,
	}
}
