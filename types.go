package otpAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/otpAuth/session"
)

// Role is a marketplace role. Roles are totally ordered by Rank.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// Rank returns the role's position in the hierarchy, or 0 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleBuyer:
		return 1
	case RoleSeller:
		return 2
	case RoleSupport:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r ranks at or above required. Unknown roles on
// either side never satisfy the check.
func (r Role) AtLeast(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.Rank() >= required.Rank()
}

// User is the identity record owned by the application.
type User struct {
	ID    string
	Email string
	Role  Role
}

// UserProvider resolves application users. Implementations return
// ErrUserNotFound for unknown ids.
type UserProvider interface {
	// FindOrCreateByEmail returns the user for a verified, normalized email,
	// creating it with the default role on first login.
	FindOrCreateByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// OTPIssue is returned by RequestOTP. Code and MagicToken are plaintext and
// must be delivered out of band; they are not retrievable again.
type OTPIssue struct {
	ChallengeID string
	Email       string
	Code        string
	MagicToken  string
	ExpiresAt   time.Time
	// Disposable is set when the email domain is a known disposable provider.
	Disposable bool
}

// VerifyReason explains a failed verification.
type VerifyReason string

const (
	ReasonNone              VerifyReason = ""
	ReasonNotFound          VerifyReason = "not_found"
	ReasonInvalidCode       VerifyReason = "invalid_code"
	ReasonAttemptsExhausted VerifyReason = "attempts_exhausted"
)

// VerifyResult is the outcome of VerifyOTP and VerifyMagicLink.
type VerifyResult struct {
	OK          bool
	Reason      VerifyReason
	ChallengeID string
	Email       string
}

// SessionGrant holds a newly created session and its plaintext secret. The
// secret is returned exactly once.
type SessionGrant struct {
	Secret  string
	Session *session.Session
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User           User
	SessionSecret  string
	Session        *session.Session
	Token          string
	TokenExpiresAt time.Time
}

// Credentials are the caller-presented credentials. Either may be empty.
type Credentials struct {
	Token         string
	SessionSecret string
}

// IdentitySource names the credential an Identity was resolved from.
type IdentitySource string

const (
	SourceToken   IdentitySource = "token"
	SourceSession IdentitySource = "session"
)

// Identity is the resolved caller.
type Identity struct {
	User      User
	SessionID string
	Source    IdentitySource
	// ExpiresAt is the token expiry for token identities and the session
	// expiry for session identities.
	ExpiresAt time.Time
}

// HasRole reports whether the identity's role ranks at or above required.
// A nil identity has no role.
func (i *Identity) HasRole(required Role) bool {
	if i == nil {
		return false
	}
	return i.User.Role.AtLeast(required)
}

// RequireRole returns ErrUnauthorized for a nil identity and ErrForbidden
// when the role is insufficient.
func (i *Identity) RequireRole(required Role) error {
	if i == nil {
		return ErrUnauthorized
	}
	if !i.HasRole(required) {
		return ErrForbidden
	}
	return nil
}
