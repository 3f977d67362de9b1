package ratelimit

import "time"

// Policy names carried by denied decisions and audit metadata.
const (
	PolicyEmailHourly       = "email_hourly"
	PolicyIPHourly          = "ip_hourly"
	PolicyCooldown          = "cooldown"
	PolicyAttemptsExhausted = "attempts_exhausted"
	PolicyVerifyIP          = "verify_ip"
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed bool
	// Policy names the violated policy; empty when allowed.
	Policy  string
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter returns how long until ResetAt, floored at zero.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

func allow(limit, count int) Decision {
	return Decision{Allowed: true, Count: count, Limit: limit}
}

func deny(policy string, limit, count int, resetAt time.Time) Decision {
	return Decision{Policy: policy, Count: count, Limit: limit, ResetAt: resetAt}
}
