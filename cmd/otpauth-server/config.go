package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"gopkg.in/yaml.v3"
)

// serverConfig is the resolved runtime configuration.
type serverConfig struct {
	Environment otpAuth.Environment
	HTTPAddr    string
	TrustProxy  bool

	RedisURL    string
	DatabaseURL string
	MaxDBConns  int

	SigningKey        string
	ValidationMode    otpAuth.ValidationMode
	DefaultRole       otpAuth.Role
	EnforceRevocation bool
	RejectDisposable  bool
	VerifyIPLimit     int

	MagicLinkBase string
	RevealCodes   bool

	ThrottlePerMinute int
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		Environment string `yaml:"environment"`
		HTTPAddr    string `yaml:"http_addr"`
		TrustProxy  *bool  `yaml:"trust_proxy"`
	} `yaml:"service"`
	Dependencies struct {
		RedisURL    string `yaml:"redis_url"`
		PostgresURL string `yaml:"postgres_url"`
		MaxDBConns  int    `yaml:"max_db_conns"`
	} `yaml:"dependencies"`
	Auth struct {
		ValidationMode    string `yaml:"validation_mode"`
		DefaultRole       string `yaml:"default_role"`
		EnforceRevocation *bool  `yaml:"enforce_revocation"`
		DisposablePolicy  string `yaml:"disposable_policy"`
		VerifyIPLimit     *int   `yaml:"verify_ip_limit"`
	} `yaml:"auth"`
	Delivery struct {
		MagicLinkBase string `yaml:"magic_link_base"`
		RevealCodes   *bool  `yaml:"reveal_codes"`
	} `yaml:"delivery"`
	Throttle struct {
		PerMinute *int `yaml:"per_minute"`
	} `yaml:"throttle"`
}

// loadConfig resolves configuration in priority order: defaults, file, env.
// A missing file is not an error.
func loadConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		Environment:       otpAuth.EnvDevelopment,
		HTTPAddr:          ":8080",
		RedisURL:          "redis://localhost:6379/0",
		MaxDBConns:        20,
		ValidationMode:    otpAuth.ModeHybrid,
		DefaultRole:       otpAuth.RoleBuyer,
		VerifyIPLimit:     30,
		ThrottlePerMinute: 60,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyFile(raw); err != nil {
			return serverConfig{}, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return serverConfig{}, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return serverConfig{}, err
	}

	if cfg.RedisURL == "" {
		return serverConfig{}, errors.New("missing REDIS_URL")
	}
	if cfg.Environment == otpAuth.EnvProduction {
		if cfg.SigningKey == "" {
			return serverConfig{}, errors.New("missing TOKEN_SIGNING_KEY")
		}
		cfg.RevealCodes = false
	}
	return cfg, nil
}

func (c *serverConfig) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Service.Environment != "" {
		c.Environment = otpAuth.Environment(f.Service.Environment)
	}
	if f.Service.HTTPAddr != "" {
		c.HTTPAddr = f.Service.HTTPAddr
	}
	if f.Service.TrustProxy != nil {
		c.TrustProxy = *f.Service.TrustProxy
	}
	if f.Dependencies.RedisURL != "" {
		c.RedisURL = f.Dependencies.RedisURL
	}
	if f.Dependencies.PostgresURL != "" {
		c.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.MaxDBConns > 0 {
		c.MaxDBConns = f.Dependencies.MaxDBConns
	}
	if f.Auth.ValidationMode != "" {
		mode, err := otpAuth.ParseValidationMode(f.Auth.ValidationMode)
		if err != nil {
			return fmt.Errorf("auth.validation_mode: %w", err)
		}
		c.ValidationMode = mode
	}
	if f.Auth.DefaultRole != "" {
		c.DefaultRole = otpAuth.Role(f.Auth.DefaultRole)
	}
	if f.Auth.EnforceRevocation != nil {
		c.EnforceRevocation = *f.Auth.EnforceRevocation
	}
	if f.Auth.DisposablePolicy != "" {
		c.RejectDisposable = strings.EqualFold(f.Auth.DisposablePolicy, "reject")
	}
	if f.Auth.VerifyIPLimit != nil {
		c.VerifyIPLimit = *f.Auth.VerifyIPLimit
	}
	if f.Delivery.MagicLinkBase != "" {
		c.MagicLinkBase = f.Delivery.MagicLinkBase
	}
	if f.Delivery.RevealCodes != nil {
		c.RevealCodes = *f.Delivery.RevealCodes
	}
	if f.Throttle.PerMinute != nil {
		c.ThrottlePerMinute = *f.Throttle.PerMinute
	}
	return nil
}

func (c *serverConfig) applyEnv() error {
	c.Environment = otpAuth.Environment(envOrDefault("OTPAUTH_ENV", string(c.Environment)))
	c.HTTPAddr = envOrDefault("OTPAUTH_HTTP_ADDR", c.HTTPAddr)
	c.TrustProxy = envBool("OTPAUTH_TRUST_PROXY", c.TrustProxy)
	c.RedisURL = envOrDefault("REDIS_URL", c.RedisURL)
	c.DatabaseURL = envOrDefault("DATABASE_URL", c.DatabaseURL)
	c.MaxDBConns = envInt("OTPAUTH_MAX_DB_CONNS", c.MaxDBConns)
	c.SigningKey = envOrDefault("TOKEN_SIGNING_KEY", c.SigningKey)
	c.DefaultRole = otpAuth.Role(envOrDefault("OTPAUTH_DEFAULT_ROLE", string(c.DefaultRole)))
	c.EnforceRevocation = envBool("OTPAUTH_ENFORCE_REVOCATION", c.EnforceRevocation)
	c.VerifyIPLimit = envInt("OTPAUTH_VERIFY_IP_LIMIT", c.VerifyIPLimit)
	c.MagicLinkBase = envOrDefault("OTPAUTH_MAGIC_LINK_BASE", c.MagicLinkBase)
	c.RevealCodes = envBool("OTPAUTH_REVEAL_CODES", c.RevealCodes)
	c.ThrottlePerMinute = envInt("OTPAUTH_THROTTLE_PER_MINUTE", c.ThrottlePerMinute)

	if raw := os.Getenv("OTPAUTH_VALIDATION_MODE"); raw != "" {
		mode, err := otpAuth.ParseValidationMode(raw)
		if err != nil {
			return fmt.Errorf("OTPAUTH_VALIDATION_MODE: %w", err)
		}
		c.ValidationMode = mode
	}
	if raw := os.Getenv("OTPAUTH_DISPOSABLE_POLICY"); raw != "" {
		c.RejectDisposable = strings.EqualFold(raw, "reject")
	}
	return nil
}

// engineConfig maps the runtime configuration onto an engine preset.
func (c serverConfig) engineConfig() otpAuth.Config {
	var cfg otpAuth.Config
	if c.Environment == otpAuth.EnvProduction {
		cfg = otpAuth.ProductionConfig([]byte(c.SigningKey))
	} else {
		cfg = otpAuth.DevelopmentConfig()
		if c.SigningKey != "" {
			cfg.Token.SigningKey = []byte(c.SigningKey)
		}
	}

	cfg.ValidationMode = c.ValidationMode
	cfg.Token.EnforceRevocation = c.EnforceRevocation
	cfg.RateLimit.VerifyIPLimit = c.VerifyIPLimit
	if cfg.RateLimit.VerifyIPWindow <= 0 {
		cfg.RateLimit.VerifyIPWindow = time.Minute
	}
	if c.RejectDisposable {
		cfg.OTP.DisposablePolicy = otpAuth.DisposableReject
	}
	return cfg
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
