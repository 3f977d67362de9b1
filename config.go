package otpAuth

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/password"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/MrEthical07/otpAuth/session"
)

// Config holds every Engine setting.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Environment    Environment
	OTP            OTPConfig
	RateLimit      RateLimitConfig
	Hasher         HasherConfig
	Session        SessionConfig
	Token          TokenConfig
	Cookie         CookieConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

// Environment selects development or production behavior.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

/*
====================================
OTP CONFIG
====================================
*/

// DisposablePolicy decides how disposable email domains are treated.
type DisposablePolicy int

const (
	// DisposableFlag allows the request and marks it in the result and audit trail.
	DisposableFlag DisposablePolicy = iota
	// DisposableReject refuses the request with ErrDisposableEmail.
	DisposableReject
)

// OTPConfig controls code issuance and verification.
type OTPConfig struct {
	CodeDigits       int
	CodeTTL          time.Duration
	MaxAttempts      int
	DisposablePolicy DisposablePolicy
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the OTP request caps and the optional per-IP
// verification throttle. VerifyIPLimit 0 disables the throttle.
type RateLimitConfig struct {
	EmailHourlyLimit int
	IPHourlyLimit    int
	Window           time.Duration
	Cooldown         time.Duration
	VerifyIPLimit    int
	VerifyIPWindow   time.Duration
	RedisPrefix      string
}

/*
====================================
HASHER CONFIG
====================================
*/

// HasherConfig holds Argon2id cost parameters. Memory is in KiB.
type HasherConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side sessions. Horizon is also the token lifetime.
type SessionConfig struct {
	Horizon     time.Duration
	RedisPrefix string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the stateless identity token.
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	SigningKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	// EnforceRevocation makes token validation consult the session
	// revocation list. Off, a token outlives its revoked session until expiry.
	EnforceRevocation bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the cookies carrying the token and session secret.
type CookieConfig struct {
	TokenName   string
	SessionName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls audit delivery. Async relays events through a
// buffered worker; otherwise sinks run inline with panics isolated.
type AuditConfig struct {
	Enabled    bool
	Async      bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects which credential is authoritative in CurrentUser.
type ValidationMode int

const (
	// ModeInherit uses Config.ValidationMode.
	ModeInherit ValidationMode = -1

	// ModeTokenOnly trusts the stateless token alone.
	ModeTokenOnly ValidationMode = iota
	// ModeHybrid tries the token and falls back to a session lookup.
	ModeHybrid
	// ModeStrict requires a live server-side session.
	ModeStrict
)

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeTokenOnly:
		return "token_only"
	case ModeHybrid:
		return "hybrid"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseValidationMode maps a config string to a ValidationMode.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch s {
	case "token_only", "token":
		return ModeTokenOnly, nil
	case "hybrid", "":
		return ModeHybrid, nil
	case "strict":
		return ModeStrict, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// MinSigningKeyLength is the shortest HS256 key accepted in production.
const MinSigningKeyLength = 32

// devSigningKey is substituted outside production when no key is configured.
var devSigningKey = []byte("otpauth-development-signing-key-do-not-use")

func defaultConfig() Config {
	otp := ratelimit.DefaultOTPConfig()
	hasher := password.ProductionConfig()

	return Config{
		Environment: EnvDevelopment,
		OTP: OTPConfig{
			CodeDigits:       internal.OTPDigits,
			CodeTTL:          10 * time.Minute,
			MaxAttempts:      otp.MaxAttempts,
			DisposablePolicy: DisposableFlag,
		},
		RateLimit: RateLimitConfig{
			EmailHourlyLimit: otp.EmailLimit,
			IPHourlyLimit:    otp.IPLimit,
			Window:           otp.Window,
			Cooldown:         otp.Cooldown,
			VerifyIPLimit:    0,
			VerifyIPWindow:   time.Minute,
			RedisPrefix:      "rl",
		},
		Hasher: HasherConfig{
			Memory:      hasher.Memory,
			Time:        hasher.Time,
			Parallelism: hasher.Parallelism,
			SaltLength:  hasher.SaltLength,
			KeyLength:   hasher.KeyLength,
		},
		Session: SessionConfig{
			Horizon:     session.Horizon,
			RedisPrefix: "ss",
		},
		Token: TokenConfig{
			SigningMethod:     "hs256",
			Issuer:            "otpauth",
			Leeway:            0,
			EnforceRevocation: false,
		},
		Cookie: CookieConfig{
			TokenName:   "mp_auth",
			SessionName: "mp_session",
			Path:        "/",
			Secure:      true,
			SameSite:    http.SameSiteLaxMode,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Async:      false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeHybrid,
	}
}

// DefaultConfig returns the baseline configuration: development environment,
// production hashing cost, hybrid validation.
func DefaultConfig() Config {
	return defaultConfig()
}

// DevelopmentConfig lowers hashing cost and allows insecure cookies for
// local HTTP.
func DevelopmentConfig() Config {
	cfg := defaultConfig()
	dev := password.DevelopmentConfig()
	cfg.Hasher = HasherConfig{
		Memory:      dev.Memory,
		Time:        dev.Time,
		Parallelism: dev.Parallelism,
		SaltLength:  dev.SaltLength,
		KeyLength:   dev.KeyLength,
	}
	cfg.Cookie.Secure = false
	cfg.Metrics.Enabled = true
	return cfg
}

// ProductionConfig returns a production configuration signed with signingKey.
func ProductionConfig(signingKey []byte) Config {
	cfg := defaultConfig()
	cfg.Environment = EnvProduction
	cfg.Token.SigningKey = cloneBytes(signingKey)
	cfg.Audit.Async = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.RateLimit.VerifyIPLimit = 30
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningKey = cloneBytes(cfg.Token.SigningKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) otpPolicyConfig() ratelimit.OTPConfig {
	return ratelimit.OTPConfig{
		EmailLimit:  c.RateLimit.EmailHourlyLimit,
		IPLimit:     c.RateLimit.IPHourlyLimit,
		Window:      c.RateLimit.Window,
		Cooldown:    c.RateLimit.Cooldown,
		MaxAttempts: c.OTP.MaxAttempts,
	}
}

func (c *Config) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Hasher.Memory,
		Time:        c.Hasher.Time,
		Parallelism: c.Hasher.Parallelism,
		SaltLength:  c.Hasher.SaltLength,
		KeyLength:   c.Hasher.KeyLength,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return errors.New("Environment must be 'development' or 'production'")
	}

	// OTP
	if c.OTP.CodeDigits < 6 || c.OTP.CodeDigits > 10 {
		return errors.New("OTP CodeDigits must be between 6 and 10")
	}
	if c.OTP.CodeTTL <= 0 {
		return errors.New("OTP CodeTTL must be > 0")
	}
	if c.OTP.CodeTTL > time.Hour {
		return errors.New("OTP CodeTTL must be <= 1h")
	}
	if c.OTP.DisposablePolicy != DisposableFlag && c.OTP.DisposablePolicy != DisposableReject {
		return errors.New("OTP DisposablePolicy is invalid")
	}
	if err := c.otpPolicyConfig().Validate(); err != nil {
		return err
	}

	// Rate limit
	if c.RateLimit.VerifyIPLimit < 0 {
		return errors.New("RateLimit VerifyIPLimit must be >= 0")
	}
	if c.RateLimit.VerifyIPLimit > 0 && c.RateLimit.VerifyIPWindow <= 0 {
		return errors.New("RateLimit VerifyIPWindow must be > 0 when VerifyIPLimit is set")
	}

	// Hasher
	if c.Hasher.SaltLength < 32 {
		return errors.New("Hasher SaltLength must be >= 32")
	}
	if _, err := password.NewArgon2(c.hasherConfig()); err != nil {
		return err
	}

	// Session
	if c.Session.Horizon <= 0 {
		return errors.New("Session Horizon must be > 0")
	}

	// Token
	switch c.Token.SigningMethod {
	case "hs256":
		if c.Environment == EnvProduction && len(c.Token.SigningKey) < MinSigningKeyLength {
			return errors.New("Token SigningKey must be at least 32 bytes in production")
		}
		if len(c.Token.SigningKey) > 0 && len(c.Token.SigningKey) < MinSigningKeyLength {
			return errors.New("Token SigningKey must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.SigningKey) == 0 || len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires SigningKey and PublicKey")
		}
	default:
		return errors.New("unsupported Token SigningMethod")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be within [0, 2m]")
	}

	// Cookie
	if c.Cookie.TokenName == "" || c.Cookie.SessionName == "" {
		return errors.New("Cookie names must not be empty")
	}
	if c.Cookie.TokenName == c.Cookie.SessionName {
		return errors.New("Cookie TokenName and SessionName must differ")
	}
	if c.Environment == EnvProduction && !c.Cookie.Secure {
		return errors.New("Cookie Secure must be true in production")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when async audit is enabled")
	}

	switch c.ValidationMode {
	case ModeTokenOnly, ModeHybrid, ModeStrict:
	default:
		return ErrInvalidRouteMode
	}

	return nil
}

// ConfigWarning is a non-fatal configuration finding.
type ConfigWarning struct {
	Code    string
	Message string
}

// ConfigWarnings is a list of findings from Lint.
type ConfigWarnings []ConfigWarning

// Codes returns the warning codes in order.
func (ws ConfigWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but weaken the deployment.
func (c *Config) Lint() ConfigWarnings {
	var ws ConfigWarnings

	if !c.Token.EnforceRevocation && c.ValidationMode != ModeStrict {
		ws = append(ws, ConfigWarning{
			Code:    "token_revocation_disabled",
			Message: "revoked sessions keep valid tokens until token expiry",
		})
	}
	if c.ValidationMode == ModeTokenOnly {
		ws = append(ws, ConfigWarning{
			Code:    "token_only_mode",
			Message: "role changes are not observed until the token expires",
		})
	}
	if !c.Audit.Enabled {
		ws = append(ws, ConfigWarning{
			Code:    "audit_disabled",
			Message: "security events are not recorded",
		})
	}
	if c.Audit.Enabled && c.Audit.Async && c.Audit.DropIfFull {
		ws = append(ws, ConfigWarning{
			Code:    "audit_may_drop",
			Message: "audit events are dropped when the buffer is full",
		})
	}
	if c.RateLimit.VerifyIPLimit == 0 {
		ws = append(ws, ConfigWarning{
			Code:    "verify_ip_throttle_disabled",
			Message: "verification attempts are limited per challenge only",
		})
	}
	if c.Environment == EnvProduction && c.Hasher.Memory < password.ProductionConfig().Memory {
		ws = append(ws, ConfigWarning{
			Code:    "hasher_cost_low",
			Message: "hashing cost is below the production preset",
		})
	}
	if c.Token.Leeway > 30*time.Second {
		ws = append(ws, ConfigWarning{
			Code:    "leeway_large",
			Message: "token leeway above 30s extends token validity",
		})
	}

	return ws
}
