package otpAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/internal/audit"
	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/password"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/MrEthical07/otpAuth/session"
	"go.uber.org/zap"
)

const timeLayout = time.RFC3339

// Engine is the passwordless authentication core: OTP challenges, sessions,
// stateless tokens and identity resolution. Build one with a Builder.
//
// Engine is safe for concurrent use. It holds no locks across store or
// hashing calls; all shared state lives in the configured stores.
type Engine struct {
	config      Config
	challenges  challenge.Store
	sessions    session.Store
	revocations session.RevocationList
	otpPolicy   *ratelimit.OTPPolicy
	verifyIP    *ratelimit.Window
	hasher      *password.Argon2
	tokens      *jwt.Manager
	users       UserProvider
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// Close flushes the async audit worker. The Engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped by a full async buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// hash and verify are the slow path; their latency feeds MetricHashLatency.
func (e *Engine) hash(secret string) (string, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricHashLatency, time.Since(start)) }()
	}
	return e.hasher.Hash(secret)
}

func (e *Engine) verify(secret, encoded string) bool {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricHashLatency, time.Since(start)) }()
	}
	return e.hasher.Verify(secret, encoded)
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) resolveMode(mode ValidationMode) (ValidationMode, error) {
	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}
	switch mode {
	case ModeTokenOnly, ModeHybrid, ModeStrict:
		return mode, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}
