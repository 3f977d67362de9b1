package otpAuth

import (
	"time"

	"github.com/MrEthical07/otpAuth/internal/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture.
type SecurityReport struct {
	ProductionMode       bool
	SigningAlgorithm     string
	ValidationMode       ValidationMode
	StrictMode           bool
	TokenTTL             time.Duration
	CodeTTL              time.Duration
	CodeDigits           int
	MaxAttempts          int
	Argon2               PasswordConfigReport
	RevocationEnforced   bool
	RequestLimitsActive  bool
	VerifyThrottleActive bool
	DisposableRejected   bool
	SecureCookies        bool
	AuditActive          bool
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	r := security.BuildReport(security.ReportInput{
		ProductionMode:   cfg.Environment == EnvProduction,
		SigningAlgorithm: cfg.Token.SigningMethod,
		ValidationMode:   int(cfg.ValidationMode),
		StrictValue:      int(ModeStrict),
		TokenTTL:         cfg.Session.Horizon,
		CodeTTL:          cfg.OTP.CodeTTL,
		CodeDigits:       cfg.OTP.CodeDigits,
		MaxAttempts:      cfg.OTP.MaxAttempts,
		Password: security.PasswordReport{
			Memory:      cfg.Hasher.Memory,
			Time:        cfg.Hasher.Time,
			Parallelism: cfg.Hasher.Parallelism,
			SaltLength:  cfg.Hasher.SaltLength,
			KeyLength:   cfg.Hasher.KeyLength,
		},
		EnforceRevocation:  cfg.Token.EnforceRevocation,
		EmailHourlyLimit:   cfg.RateLimit.EmailHourlyLimit,
		IPHourlyLimit:      cfg.RateLimit.IPHourlyLimit,
		Cooldown:           cfg.RateLimit.Cooldown,
		VerifyIPLimit:      cfg.RateLimit.VerifyIPLimit,
		VerifyIPWindow:     cfg.RateLimit.VerifyIPWindow,
		DisposableRejected: cfg.OTP.DisposablePolicy == DisposableReject,
		SecureCookies:      cfg.Cookie.Secure,
		AuditEnabled:       cfg.Audit.Enabled,
	})

	return SecurityReport{
		ProductionMode:       r.ProductionMode,
		SigningAlgorithm:     r.SigningAlgorithm,
		ValidationMode:       ValidationMode(r.ValidationMode),
		StrictMode:           r.StrictMode,
		TokenTTL:             r.TokenTTL,
		CodeTTL:              r.CodeTTL,
		CodeDigits:           r.CodeDigits,
		MaxAttempts:          r.MaxAttempts,
		Argon2:               PasswordConfigReport(r.Argon2),
		RevocationEnforced:   r.RevocationEnforced,
		RequestLimitsActive:  r.RequestLimitsActive,
		VerifyThrottleActive: r.VerifyThrottleActive,
		DisposableRejected:   r.DisposableRejected,
		SecureCookies:        r.SecureCookies,
		AuditActive:          r.AuditActive,
	}
}
