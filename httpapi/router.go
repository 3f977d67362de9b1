package httpapi

import (
	"net/http"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/middleware"
	"github.com/MrEthical07/otpAuth/ratelimit"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler is the HTTP adapter over an Engine.
type Handler struct {
	engine     *otpAuth.Engine
	sender     CodeSender
	logger     *zap.Logger
	mode       otpAuth.ValidationMode
	trustProxy bool
	throttle   *ratelimit.Window
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the access and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithValidationMode sets the mode used to resolve callers on protected
// routes. The default defers to the engine's configured mode.
func WithValidationMode(mode otpAuth.ValidationMode) Option {
	return func(h *Handler) { h.mode = mode }
}

// WithTrustedProxy makes client IPs come from X-Forwarded-For.
func WithTrustedProxy(trust bool) Option {
	return func(h *Handler) { h.trustProxy = trust }
}

// WithThrottle applies window per client IP to the unauthenticated OTP
// endpoints.
func WithThrottle(window *ratelimit.Window) Option {
	return func(h *Handler) { h.throttle = window }
}

// NewHandler binds engine and sender. A nil sender logs deliveries without
// revealing codes.
func NewHandler(engine *otpAuth.Engine, sender CodeSender, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		sender: sender,
		logger: zap.NewNop(),
		mode:   otpAuth.ModeInherit,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sender == nil {
		h.sender = &LogSender{Logger: h.logger}
	}
	return h
}

// NewRouter registers the auth routes and middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.ClientInfo(h.trustProxy))

	r.Get("/healthz", h.healthz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.throttle != nil {
				r.Use(middleware.Throttle(h.throttle, middleware.ByClientIP(h.trustProxy), nil, h.logger))
			}
			r.Post("/otp/request", h.requestOTP)
			r.Post("/otp/verify", h.verifyOTP)
			r.Post("/magic", h.magicLink)
			r.Get("/magic", h.confirmMagicLink)
		})

		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(h.engine, h.mode))
			r.Get("/me", h.me)
			r.Post("/logout-all", h.logoutAll)
			r.Get("/sessions", h.listSessions)
			r.Delete("/sessions/{session_id}", h.revokeSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStrict(h.engine))
			r.Use(middleware.RequireRole(otpAuth.RoleAdmin))
			r.Delete("/users/{user_id}/sessions", h.forceLogout)
		})
	})

	return r
}
