package httpapi

import (
	"net/http"
	"strings"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/middleware"
	"github.com/MrEthical07/otpAuth/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type requestOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type magicLinkRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

func userOf(u otpAuth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: string(u.Role)}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "ok"})
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	issue, err := h.engine.RequestOTP(r.Context(), req.Email)
	if err != nil {
		h.writeMappedError(w, r, "otp_request", err)
		return
	}

	if err := h.sender.Send(r.Context(), deliveryOf(issue)); err != nil {
		h.logger.Error("otp delivery failed",
			zap.String("challenge_id", issue.ChallengeID),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "DELIVERY_FAILED", "could not deliver code")
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{
		"challenge_id": issue.ChallengeID,
		"expires_at":   issue.ExpiresAt,
		"disposable":   issue.Disposable,
	})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.engine.LoginWithOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeMappedError(w, r, "otp_verify", err)
		return
	}
	h.writeLogin(w, res)
}

// magicLink logs in from the confirmation form or a JSON body. The emailed
// GET link lands on confirmMagicLink instead.
func (h *Handler) magicLink(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMagicLink(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.engine.LoginWithMagicLink(r.Context(), req.Email, req.Token)
	if err != nil {
		h.writeMappedError(w, r, "magic_link", err)
		return
	}
	h.writeLogin(w, res)
}

func (h *Handler) writeLogin(w http.ResponseWriter, res *otpAuth.LoginResult) {
	h.engine.SetLoginCookies(w, res)
	writeSuccess(w, http.StatusOK, map[string]any{
		"user":             userOf(res.User),
		"session_id":       res.Session.ID,
		"token":            res.Token,
		"token_expires_at": res.TokenExpiresAt,
	})
}

// logout revokes the presented session and clears both cookies. It succeeds
// without a session so clients can always reach a logged-out state.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	creds := h.engine.CredentialsFromRequest(r)
	if creds.SessionSecret != "" {
		if err := h.engine.Logout(r.Context(), creds.SessionSecret); err != nil {
			h.writeMappedError(w, r, "logout", err)
			return
		}
	}
	h.engine.ClearLoginCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeSuccess(w, http.StatusOK, map[string]any{
		"user":       userOf(id.User),
		"session_id": id.SessionID,
		"source":     string(id.Source),
		"expires_at": id.ExpiresAt,
	})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	n, err := h.engine.RevokeAllSessionsForUser(r.Context(), id.User.ID)
	if err != nil {
		h.writeMappedError(w, r, "logout_all", err)
		return
	}
	h.engine.ClearLoginCookies(w)
	writeSuccess(w, http.StatusOK, map[string]any{"revoked": n})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	sessions, err := h.engine.ListSessions(r.Context(), id.User.ID)
	if err != nil {
		h.writeMappedError(w, r, "list_sessions", err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:        s.ID,
			IP:        s.IP,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			Current:   s.ID == id.SessionID,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": out})
}

// revokeSession revokes one of the caller's own sessions.
func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	target := strings.TrimSpace(chi.URLParam(r, "session_id"))

	sessions, err := h.engine.ListSessions(r.Context(), id.User.ID)
	if err != nil {
		h.writeMappedError(w, r, "revoke_session", err)
		return
	}
	if !ownsSession(sessions, target) {
		h.writeMappedError(w, r, "revoke_session", otpAuth.ErrSessionNotFound)
		return
	}

	if err := h.engine.RevokeSession(r.Context(), target); err != nil {
		h.writeMappedError(w, r, "revoke_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ownsSession(sessions []*session.Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// forceLogout is the administrator forced logout of another user.
func (h *Handler) forceLogout(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if err := h.engine.LogoutAll(r.Context(), userID); err != nil {
		h.writeMappedError(w, r, "force_logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
