package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"go.uber.org/zap"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func mapError(err error) (int, string, string) {
	var rl *otpAuth.RateLimitError
	var ve *otpAuth.VerificationError
	switch {
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"
	case errors.As(err, &ve):
		if ve.Reason == otpAuth.ReasonAttemptsExhausted {
			return http.StatusTooManyRequests, "ATTEMPTS_EXHAUSTED", "too many attempts; request a new code"
		}
		return http.StatusUnauthorized, "VERIFICATION_FAILED", "invalid or expired code"
	case errors.Is(err, otpAuth.ErrInvalidEmail), errors.Is(err, otpAuth.ErrInvalidCode):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, otpAuth.ErrDisposableEmail):
		return http.StatusUnprocessableEntity, "DISPOSABLE_EMAIL", "disposable email addresses are not accepted"
	case errors.Is(err, otpAuth.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, otpAuth.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "insufficient role"
	case errors.Is(err, otpAuth.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "session not found"
	case errors.Is(err, otpAuth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code, msg := mapError(err)

	var rl *otpAuth.RateLimitError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter(time.Now()).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err),
	}
	if status >= 500 {
		h.logger.Error("http operation failed", fields...)
	} else {
		h.logger.Debug("http operation failed", fields...)
	}
	writeError(w, status, code, msg)
}
