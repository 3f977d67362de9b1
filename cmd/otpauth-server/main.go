// Command otpauth-server runs the passwordless auth HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/httpapi"
	"github.com/MrEthical07/otpAuth/metrics/export/prometheus"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/MrEthical07/otpAuth/store/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(env otpAuth.Environment) (*zap.Logger, error) {
	if env == otpAuth.EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return err
	}

	engineCfg := cfg.engineConfig()
	builder := otpAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithLogger(logger)

	sinks := []otpAuth.AuditSink{otpAuth.NewZapAuditSink(logger.Named("audit"))}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer func() { _ = sqlDB.Close() }()
		}
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
		builder = builder.
			WithChallengeStore(postgres.NewChallengeStore(db)).
			WithSessionStore(postgres.NewSessionStore(db)).
			WithRevocationList(postgres.NewRevocationList(db, nil)).
			WithUserProvider(postgres.NewUserDirectory(db, cfg.DefaultRole))
		sinks = append(sinks, postgres.NewAuditSink(db, logger))
	} else {
		logger.Warn("DATABASE_URL not set; users are kept in memory")
		builder = builder.WithUserProvider(otpAuth.NewMemoryUserProvider(cfg.DefaultRole))
	}
	builder = builder.WithAuditSink(otpAuth.NewMultiAuditSink(sinks...))

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		zap.Bool("production", report.ProductionMode),
		zap.String("validation_mode", report.ValidationMode.String()),
		zap.Bool("revocation_enforced", report.RevocationEnforced),
		zap.Bool("verify_throttle", report.VerifyThrottleActive),
		zap.Bool("secure_cookies", report.SecureCookies),
	)
	for _, w := range engineCfg.Lint() {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	handlerOpts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithTrustedProxy(cfg.TrustProxy),
	}
	if cfg.ThrottlePerMinute > 0 {
		counter := ratelimit.NewFallbackCounter(
			ratelimit.NewRedisCounter(rdb, "thr", nil),
			ratelimit.NewMemoryCounter(nil),
			logger,
		)
		window, err := ratelimit.NewWindow("http", counter, cfg.ThrottlePerMinute, time.Minute)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, httpapi.WithThrottle(window))
	}

	sender := &httpapi.LogSender{
		Logger:   logger.Named("delivery"),
		Reveal:   cfg.RevealCodes,
		LinkBase: cfg.MagicLinkBase,
	}

	root := chi.NewRouter()
	root.Handle("/metrics", prometheus.New(engine).Handler())
	root.Mount("/", httpapi.NewRouter(httpapi.NewHandler(engine, sender, handlerOpts...)))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.ValidationMode.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
