package postgres

import (
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/challenge"
	"github.com/MrEthical07/otpAuth/session"
)

type userModel struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Email     string    `gorm:"column:email"`
	Role      string    `gorm:"column:role"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "auth_users" }

type challengeModel struct {
	ChallengeID string     `gorm:"column:challenge_id;primaryKey"`
	Email       string     `gorm:"column:email"`
	CodeHash    string     `gorm:"column:code_hash"`
	TokenHash   string     `gorm:"column:token_hash"`
	IPAddress   string     `gorm:"column:ip_address"`
	UserAgent   string     `gorm:"column:user_agent"`
	Attempts    int        `gorm:"column:attempts"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	ExpiresAt   time.Time  `gorm:"column:expires_at"`
	ConsumedAt  *time.Time `gorm:"column:consumed_at"`
}

func (challengeModel) TableName() string { return "otp_challenges" }

type sessionModel struct {
	SessionID  string     `gorm:"column:session_id;primaryKey"`
	UserID     string     `gorm:"column:user_id"`
	SecretHash string     `gorm:"column:secret_hash"`
	IPAddress  string     `gorm:"column:ip_address"`
	UserAgent  string     `gorm:"column:user_agent"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	ExpiresAt  time.Time  `gorm:"column:expires_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
}

func (sessionModel) TableName() string { return "auth_sessions" }

type revokedSessionModel struct {
	SessionID string    `gorm:"column:session_id;primaryKey"`
	Until     time.Time `gorm:"column:until"`
}

func (revokedSessionModel) TableName() string { return "revoked_sessions" }

type auditEventModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
	Kind       string    `gorm:"column:kind"`
	Email      string    `gorm:"column:email"`
	UserID     string    `gorm:"column:user_id"`
	SessionID  string    `gorm:"column:session_id"`
	IPAddress  string    `gorm:"column:ip_address"`
	UserAgent  string    `gorm:"column:user_agent"`
	Success    bool      `gorm:"column:success"`
	ErrorCode  string    `gorm:"column:error_code"`
	Metadata   *string   `gorm:"column:metadata;type:jsonb"`
}

func (auditEventModel) TableName() string { return "auth_audit_events" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromChallenge(c *challenge.Challenge) challengeModel {
	return challengeModel{
		ChallengeID: c.ID,
		Email:       c.Email,
		CodeHash:    c.CodeHash,
		TokenHash:   c.TokenHash,
		IPAddress:   c.IP,
		UserAgent:   c.UserAgent,
		Attempts:    c.Attempts,
		CreatedAt:   c.CreatedAt.UTC(),
		ExpiresAt:   c.ExpiresAt.UTC(),
		ConsumedAt:  utcPtr(c.ConsumedAt),
	}
}

func toChallenge(m challengeModel) *challenge.Challenge {
	return &challenge.Challenge{
		ID:         m.ChallengeID,
		Email:      m.Email,
		CodeHash:   m.CodeHash,
		TokenHash:  m.TokenHash,
		IP:         m.IPAddress,
		UserAgent:  m.UserAgent,
		Attempts:   m.Attempts,
		CreatedAt:  m.CreatedAt.UTC(),
		ExpiresAt:  m.ExpiresAt.UTC(),
		ConsumedAt: utcPtr(m.ConsumedAt),
	}
}

func fromSession(s *session.Session) sessionModel {
	return sessionModel{
		SessionID:  s.ID,
		UserID:     s.UserID,
		SecretHash: s.SecretHash,
		IPAddress:  s.IP,
		UserAgent:  s.UserAgent,
		CreatedAt:  s.CreatedAt.UTC(),
		ExpiresAt:  s.ExpiresAt.UTC(),
		RevokedAt:  utcPtr(s.RevokedAt),
	}
}

func toSession(m sessionModel) *session.Session {
	return &session.Session{
		ID:         m.SessionID,
		UserID:     m.UserID,
		SecretHash: m.SecretHash,
		IP:         m.IPAddress,
		UserAgent:  m.UserAgent,
		CreatedAt:  m.CreatedAt.UTC(),
		ExpiresAt:  m.ExpiresAt.UTC(),
		RevokedAt:  utcPtr(m.RevokedAt),
	}
}

func toUser(m userModel) otpAuth.User {
	return otpAuth.User{ID: m.UserID, Email: m.Email, Role: otpAuth.Role(m.Role)}
}
