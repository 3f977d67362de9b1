package httpapi

import (
	"context"
	"net/url"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"go.uber.org/zap"
)

// Delivery is one code to hand to the user out of band.
type Delivery struct {
	ChallengeID string
	Email       string
	Code        string
	MagicToken  string
	ExpiresAt   time.Time
}

// MagicLink renders the magic-link URL under base.
func (d Delivery) MagicLink(base string) string {
	q := url.Values{}
	q.Set("email", d.Email)
	q.Set("token", d.MagicToken)
	return base + "?" + q.Encode()
}

func deliveryOf(issue *otpAuth.OTPIssue) Delivery {
	return Delivery{
		ChallengeID: issue.ChallengeID,
		Email:       issue.Email,
		Code:        issue.Code,
		MagicToken:  issue.MagicToken,
		ExpiresAt:   issue.ExpiresAt,
	}
}

// CodeSender delivers a freshly issued code and magic link. Email transport
// lives behind this port.
type CodeSender interface {
	Send(ctx context.Context, d Delivery) error
}

// LogSender writes deliveries to a zap logger. Codes are only included when
// Reveal is set, which is meant for local development.
type LogSender struct {
	Logger   *zap.Logger
	Reveal   bool
	LinkBase string
}

func (s *LogSender) Send(_ context.Context, d Delivery) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := []zap.Field{
		zap.String("challenge_id", d.ChallengeID),
		zap.String("email", d.Email),
		zap.Time("expires_at", d.ExpiresAt),
	}
	if s.Reveal {
		fields = append(fields, zap.String("code", d.Code))
		if s.LinkBase != "" {
			fields = append(fields, zap.String("magic_link", d.MagicLink(s.LinkBase)))
		}
	}
	logger.Info("otp delivery", fields...)
	return nil
}

// SenderFunc adapts a function to CodeSender.
type SenderFunc func(ctx context.Context, d Delivery) error

func (f SenderFunc) Send(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}
