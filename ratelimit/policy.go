package ratelimit

import (
	"context"
	"errors"
	"time"
)

// RequestHistory returns the creation times of OTP challenges issued for an
// email or from an IP at or after since.
type RequestHistory interface {
	EmailRequestTimes(ctx context.Context, email string, since time.Time) ([]time.Time, error)
	IPRequestTimes(ctx context.Context, ip string, since time.Time) ([]time.Time, error)
}

// OTPConfig holds the OTP request and verification thresholds.
type OTPConfig struct {
	EmailLimit  int
	IPLimit     int
	Window      time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

// DefaultOTPConfig returns 20 requests per email and 50 per IP per hour, a
// 30 second cooldown and 10 verification attempts per challenge.
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		EmailLimit:  20,
		IPLimit:     50,
		Window:      time.Hour,
		Cooldown:    30 * time.Second,
		MaxAttempts: 10,
	}
}

// Validate checks threshold sanity.
func (c OTPConfig) Validate() error {
	if c.EmailLimit <= 0 || c.IPLimit <= 0 {
		return errors.New("otp request limits must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("otp request window must be > 0")
	}
	if c.Cooldown < 0 || c.Cooldown > c.Window {
		return errors.New("otp cooldown must be within [0, window]")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("otp max attempts must be > 0")
	}
	return nil
}

// OTPPolicy applies the OTP request and verification gates.
type OTPPolicy struct {
	config  OTPConfig
	history RequestHistory
}

// NewOTPPolicy validates cfg and binds it to history.
func NewOTPPolicy(cfg OTPConfig, history RequestHistory) (*OTPPolicy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, errors.New("otp policy requires request history")
	}
	return &OTPPolicy{config: cfg, history: history}, nil
}

// Config returns the policy thresholds.
func (p *OTPPolicy) Config() OTPConfig {
	return p.config
}

// CheckRequest evaluates, in order, the per-email cap, the per-IP cap and the
// cooldown for a new OTP request at now. The first violated policy is
// returned. An empty ip skips the per-IP cap.
func (p *OTPPolicy) CheckRequest(ctx context.Context, email, ip string, now time.Time) (Decision, error) {
	since := now.Add(-p.config.Window)

	emailTimes, err := p.history.EmailRequestTimes(ctx, email, since)
	if err != nil {
		return Decision{}, err
	}
	emailTimes = within(emailTimes, since, now)

	if len(emailTimes) >= p.config.EmailLimit {
		oldest, _ := bounds(emailTimes)
		return deny(PolicyEmailHourly, p.config.EmailLimit, len(emailTimes), oldest.Add(p.config.Window)), nil
	}

	if ip != "" {
		ipTimes, err := p.history.IPRequestTimes(ctx, ip, since)
		if err != nil {
			return Decision{}, err
		}
		ipTimes = within(ipTimes, since, now)

		if len(ipTimes) >= p.config.IPLimit {
			oldest, _ := bounds(ipTimes)
			return deny(PolicyIPHourly, p.config.IPLimit, len(ipTimes), oldest.Add(p.config.Window)), nil
		}
	}

	if p.config.Cooldown > 0 && len(emailTimes) > 0 {
		_, latest := bounds(emailTimes)
		if now.Sub(latest) < p.config.Cooldown {
			return deny(PolicyCooldown, 1, 1, latest.Add(p.config.Cooldown)), nil
		}
	}

	return allow(p.config.EmailLimit, len(emailTimes)), nil
}

// CheckAttempts gates verification on a challenge's attempts counter.
func (p *OTPPolicy) CheckAttempts(attempts int) Decision {
	if attempts >= p.config.MaxAttempts {
		return deny(PolicyAttemptsExhausted, p.config.MaxAttempts, attempts, time.Time{})
	}
	return allow(p.config.MaxAttempts, attempts)
}

// Exhausts reports whether a post-increment attempts value is the one that
// reaches the maximum.
func (p *OTPPolicy) Exhausts(attempts int) bool {
	return attempts == p.config.MaxAttempts
}

func within(times []time.Time, since, now time.Time) []time.Time {
	out := times[:0:0]
	for _, t := range times {
		if t.Before(since) || t.After(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func bounds(times []time.Time) (oldest, latest time.Time) {
	for i, t := range times {
		if i == 0 || t.Before(oldest) {
			oldest = t
		}
		if i == 0 || t.After(latest) {
			latest = t
		}
	}
	return oldest, latest
}
