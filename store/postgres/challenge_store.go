package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpAuth/challenge"
	"gorm.io/gorm"
)

// ChallengeStore is a challenge.Store over the otp_challenges table.
type ChallengeStore struct {
	db *gorm.DB
}

func NewChallengeStore(db *gorm.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func (s *ChallengeStore) Insert(ctx context.Context, c *challenge.Challenge) error {
	if c == nil || c.ID == "" || c.Email == "" {
		return errors.New("challenge requires id and email")
	}
	rec := fromChallenge(c)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return dbError(err)
	}
	return nil
}

func (s *ChallengeStore) Latest(ctx context.Context, email string) (*challenge.Challenge, error) {
	return s.first(s.db.WithContext(ctx).Where("email = ?", email))
}

func (s *ChallengeStore) LatestActive(ctx context.Context, email string, now time.Time) (*challenge.Challenge, error) {
	return s.first(s.db.WithContext(ctx).
		Where("email = ?", email).
		Where("consumed_at IS NULL").
		Where("expires_at > ?", now.UTC()))
}

func (s *ChallengeStore) first(q *gorm.DB) (*challenge.Challenge, error) {
	var rec challengeModel
	if err := q.Order("created_at DESC").Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, challenge.ErrNotFound
		}
		return nil, dbError(err)
	}
	return toChallenge(rec), nil
}

// Get returns the challenge with id in any state.
func (s *ChallengeStore) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.first(s.db.WithContext(ctx).Where("challenge_id = ?", id))
}

// ReserveAttempt relies on a single conditional UPDATE ... RETURNING so
// concurrent callers each observe a distinct value and no more than limit
// succeed.
func (s *ChallengeStore) ReserveAttempt(ctx context.Context, id string, limit int) (int, error) {
	var attempts []int
	err := s.db.WithContext(ctx).
		Raw(`UPDATE otp_challenges SET attempts = attempts + 1
			WHERE challenge_id = ? AND consumed_at IS NULL AND attempts < ?
			RETURNING attempts`, id, limit).
		Scan(&attempts).Error
	if err != nil {
		return 0, dbError(err)
	}
	if len(attempts) == 1 {
		return attempts[0], nil
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.ConsumedAt != nil {
		return 0, challenge.ErrNotFound
	}
	return 0, challenge.ErrAttemptsExhausted
}

func (s *ChallengeStore) Consume(ctx context.Context, id string, now time.Time, limit int) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&challengeModel{}).
		Where("challenge_id = ?", id).
		Where("consumed_at IS NULL").
		Where("attempts <= ?", limit).
		Updates(map[string]any{
			"consumed_at": now.UTC(),
			"attempts":    gorm.Expr("GREATEST(attempts - 1, 0)"),
		})
	if res.Error != nil {
		return false, dbError(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&challengeModel{}).Where("challenge_id = ?", id).Count(&exists).Error; err != nil {
		return false, dbError(err)
	}
	if exists == 0 {
		return false, challenge.ErrNotFound
	}
	return false, nil
}

func (s *ChallengeStore) EmailRequestTimes(ctx context.Context, email string, since time.Time) ([]time.Time, error) {
	return s.requestTimes(ctx, "email", email, since)
}

func (s *ChallengeStore) IPRequestTimes(ctx context.Context, ip string, since time.Time) ([]time.Time, error) {
	if ip == "" {
		return nil, nil
	}
	return s.requestTimes(ctx, "ip_address", ip, since)
}

func (s *ChallengeStore) requestTimes(ctx context.Context, column, value string, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := s.db.WithContext(ctx).
		Model(&challengeModel{}).
		Where(column+" = ?", value).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, dbError(err)
	}
	for i := range times {
		times[i] = times[i].UTC()
	}
	return times, nil
}
