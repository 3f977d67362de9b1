package otpAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/internal/audit"
	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/password"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	challenges  challenge.Store
	sessions    session.Store
	revocations session.RevocationList
	counter     ratelimit.Counter

	userProvider UserProvider
	auditSink    AuditSink
	logger       *zap.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs every store that is not set explicitly with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithChallengeStore overrides the challenge store.
func (b *Builder) WithChallengeStore(s challenge.Store) *Builder {
	b.challenges = s
	return b
}

// WithSessionStore overrides the session store.
func (b *Builder) WithSessionStore(s session.Store) *Builder {
	b.sessions = s
	return b
}

// WithRevocationList overrides the token revocation list.
func (b *Builder) WithRevocationList(l session.RevocationList) *Builder {
	b.revocations = l
	return b
}

// WithCounter overrides the counter behind the verification IP throttle.
func (b *Builder) WithCounter(c ratelimit.Counter) *Builder {
	b.counter = c
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for background failures. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for every expiry, window and token decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if cfg.Environment != EnvProduction && cfg.Token.SigningMethod == "hs256" && len(cfg.Token.SigningKey) == 0 {
		cfg.Token.SigningKey = cloneBytes(devSigningKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- STORES --------
	challenges := b.challenges
	sessions := b.sessions
	revocations := b.revocations
	counter := b.counter

	if b.redis != nil {
		if challenges == nil {
			challenges = challenge.NewRedisStore(b.redis, challenge.DefaultRetention)
		}
		if sessions == nil {
			sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
		}
		if revocations == nil {
			revocations = session.NewRedisRevocationList(b.redis, "", now)
		}
		if counter == nil {
			counter = ratelimit.NewFallbackCounter(
				ratelimit.NewRedisCounter(b.redis, cfg.RateLimit.RedisPrefix, now),
				ratelimit.NewMemoryCounter(now),
				logger,
			)
		}
	}

	if challenges == nil {
		return nil, errors.New("challenge store or redis client required")
	}
	if sessions == nil {
		return nil, errors.New("session store or redis client required")
	}
	if revocations == nil {
		if cfg.Token.EnforceRevocation {
			return nil, errors.New("Token EnforceRevocation requires a revocation list or redis client")
		}
		revocations = session.NewMemoryRevocationList(now)
	}
	if counter == nil {
		counter = ratelimit.NewMemoryCounter(now)
	}

	engine := &Engine{
		config:      cfg,
		challenges:  challenges,
		sessions:    sessions,
		revocations: revocations,
		users:       b.userProvider,
		logger:      logger,
		now:         now,
	}

	// -------- LIMITERS --------
	policy, err := ratelimit.NewOTPPolicy(cfg.otpPolicyConfig(), challenges)
	if err != nil {
		return nil, err
	}
	engine.otpPolicy = policy

	if cfg.RateLimit.VerifyIPLimit > 0 {
		w, err := ratelimit.NewWindow(ratelimit.PolicyVerifyIP, counter, cfg.RateLimit.VerifyIPLimit, cfg.RateLimit.VerifyIPWindow)
		if err != nil {
			return nil, err
		}
		engine.verifyIP = w
	}

	// -------- CRYPTO --------
	ph, err := password.NewArgon2(cfg.hasherConfig())
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.Horizon,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.SigningKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	// -------- OBSERVABILITY --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		Async:      cfg.Audit.Async,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
