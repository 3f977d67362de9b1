package internaldefs

import (
	otpAuth "github.com/MrEthical07/otpAuth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   otpAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   otpAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events the async audit dispatcher dropped.
const AuditDroppedName = "otpauth_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: otpAuth.MetricOTPRequested, Name: "otpauth_otp_requested_total", Help: "Issued OTP challenges."},
	{ID: otpAuth.MetricOTPRateLimited, Name: "otpauth_otp_rate_limited_total", Help: "OTP requests denied by the email, IP or cooldown policy."},
	{ID: otpAuth.MetricOTPVerifySuccess, Name: "otpauth_otp_verify_success_total", Help: "Consumed OTP challenges."},
	{ID: otpAuth.MetricOTPVerifyFailure, Name: "otpauth_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: otpAuth.MetricOTPAttemptsExhausted, Name: "otpauth_otp_attempts_exhausted_total", Help: "Challenges locked by the attempt cap."},
	{ID: otpAuth.MetricOTPExpired, Name: "otpauth_otp_expired_total", Help: "Verifications against an expired challenge."},
	{ID: otpAuth.MetricMagicLinkSuccess, Name: "otpauth_magic_link_success_total", Help: "Challenges consumed through the magic link."},
	{ID: otpAuth.MetricLoginSuccess, Name: "otpauth_login_success_total", Help: "Successful logins."},
	{ID: otpAuth.MetricLoginFailure, Name: "otpauth_login_failure_total", Help: "Failed logins."},
	{ID: otpAuth.MetricSessionCreated, Name: "otpauth_session_created_total", Help: "Created sessions."},
	{ID: otpAuth.MetricSessionResolved, Name: "otpauth_session_resolved_total", Help: "Session secrets resolved to an active session."},
	{ID: otpAuth.MetricSessionMiss, Name: "otpauth_session_miss_total", Help: "Session secrets that resolved to nothing."},
	{ID: otpAuth.MetricSessionRevoked, Name: "otpauth_session_revoked_total", Help: "Revoked sessions."},
	{ID: otpAuth.MetricLogout, Name: "otpauth_logout_total", Help: "Single-session logouts."},
	{ID: otpAuth.MetricLogoutAll, Name: "otpauth_logout_all_total", Help: "Forced logout-all operations."},
	{ID: otpAuth.MetricTokenIssued, Name: "otpauth_token_issued_total", Help: "Minted stateless tokens."},
	{ID: otpAuth.MetricTokenRejected, Name: "otpauth_token_rejected_total", Help: "Tokens failing signature, expiry or revocation checks."},
	{ID: otpAuth.MetricRateLimitHit, Name: "otpauth_rate_limit_hit_total", Help: "Rate-limit decisions that denied a request."},
}

var HistogramDefs = []HistogramDef{
	{ID: otpAuth.MetricHashLatency, Name: "otpauth_hash_latency_seconds", Help: "Argon2 hash and verify latency."},
}

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
