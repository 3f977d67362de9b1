package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	ProductionMode       bool
	SigningAlgorithm     string
	ValidationMode       int
	StrictMode           bool
	TokenTTL             time.Duration
	CodeTTL              time.Duration
	CodeDigits           int
	MaxAttempts          int
	Argon2               PasswordReport
	RevocationEnforced   bool
	RequestLimitsActive  bool
	VerifyThrottleActive bool
	DisposableRejected   bool
	SecureCookies        bool
	AuditActive          bool
}

type ReportInput struct {
	ProductionMode     bool
	SigningAlgorithm   string
	ValidationMode     int
	StrictValue        int
	TokenTTL           time.Duration
	CodeTTL            time.Duration
	CodeDigits         int
	MaxAttempts        int
	Password           PasswordReport
	EnforceRevocation  bool
	EmailHourlyLimit   int
	IPHourlyLimit      int
	Cooldown           time.Duration
	VerifyIPLimit      int
	VerifyIPWindow     time.Duration
	DisposableRejected bool
	SecureCookies      bool
	AuditEnabled       bool
}

func BuildReport(input ReportInput) Report {
	requestLimits := input.EmailHourlyLimit > 0 &&
		input.IPHourlyLimit > 0 &&
		input.Cooldown > 0

	return Report{
		ProductionMode:       input.ProductionMode,
		SigningAlgorithm:     input.SigningAlgorithm,
		ValidationMode:       input.ValidationMode,
		StrictMode:           input.ValidationMode == input.StrictValue,
		TokenTTL:             input.TokenTTL,
		CodeTTL:              input.CodeTTL,
		CodeDigits:           input.CodeDigits,
		MaxAttempts:          input.MaxAttempts,
		Argon2:               input.Password,
		RevocationEnforced:   input.EnforceRevocation,
		RequestLimitsActive:  requestLimits,
		VerifyThrottleActive: input.VerifyIPLimit > 0 && input.VerifyIPWindow > 0,
		DisposableRejected:   input.DisposableRejected,
		SecureCookies:        input.SecureCookies,
		AuditActive:          input.AuditEnabled,
	}
}
