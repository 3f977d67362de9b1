package middleware

import (
	"net/http"

	otpAuth "github.com/MrEthical07/otpAuth"
)

// RequireTokenOnly validates the stateless token alone. Revoked sessions keep
// passing until their token expires unless revocation enforcement is enabled.
func RequireTokenOnly(engine *otpAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, otpAuth.ModeTokenOnly)
}

func RequireStrict(engine *otpAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, otpAuth.ModeStrict)
}
