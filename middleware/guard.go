package middleware

import (
	"context"
	"errors"
	"net/http"

	otpAuth "github.com/MrEthical07/otpAuth"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by a guard.
func IdentityFromContext(ctx context.Context) (*otpAuth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*otpAuth.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *otpAuth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard resolves the caller from the token and session cookies (or a bearer
// header) under mode and rejects unauthenticated requests with 401. Backend
// failures return 503.
func Guard(engine *otpAuth.Engine, mode otpAuth.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := engine.CurrentUser(r.Context(), engine.CredentialsFromRequest(r), mode)
			if err != nil {
				if errors.Is(err, otpAuth.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects requests whose identity ranks below role. Requests
// without an identity get 401.
func RequireRole(role otpAuth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())
			switch err := id.RequireRole(role); {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, otpAuth.ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}
		})
	}
}
