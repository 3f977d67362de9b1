package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpAuth/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore is a session.Store over the auth_sessions table.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Insert(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" || sess.SecretHash == "" {
		return errors.New("session requires id, user id and secret hash")
	}
	rec := fromSession(sess)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return dbError(err)
	}
	return nil
}

func (s *SessionStore) FindBySecretHash(ctx context.Context, secretHash string) (*session.Session, error) {
	return s.take(s.db.WithContext(ctx).Where("secret_hash = ?", secretHash))
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.take(s.db.WithContext(ctx).Where("session_id = ?", id))
}

func (s *SessionStore) take(q *gorm.DB) (*session.Session, error) {
	var rec sessionModel
	if err := q.Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, dbError(err)
	}
	return toSession(rec), nil
}

func (s *SessionStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("session_id = ?", id).
		Where("revoked_at IS NULL").
		Update("revoked_at", now.UTC())
	if res.Error != nil {
		return false, dbError(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&sessionModel{}).Where("session_id = ?", id).Count(&exists).Error; err != nil {
		return false, dbError(err)
	}
	if exists == 0 {
		return false, session.ErrNotFound
	}
	return false, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]string, error) {
	var revoked []sessionModel
	err := s.db.WithContext(ctx).
		Model(&revoked).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "session_id"}}}).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Update("revoked_at", now.UTC()).Error
	if err != nil {
		return nil, dbError(err)
	}

	ids := make([]string, 0, len(revoked))
	for _, r := range revoked {
		ids = append(ids, r.SessionID)
	}
	return ids, nil
}

func (s *SessionStore) ListForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	var rows []sessionModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err)
	}

	out := make([]*session.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSession(r))
	}
	return out, nil
}

// RevocationList is a session.RevocationList over the revoked_sessions table.
type RevocationList struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRevocationList(db *gorm.DB, now func() time.Time) *RevocationList {
	if now == nil {
		now = time.Now
	}
	return &RevocationList{db: db, now: now}
}

// Add records sessionID until until. A later until extends an existing
// entry; past deadlines are ignored.
func (l *RevocationList) Add(ctx context.Context, sessionID string, until time.Time) error {
	if !until.After(l.now()) {
		return nil
	}
	rec := revokedSessionModel{SessionID: sessionID, Until: until.UTC()}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(map[string]any{"until": gorm.Expr("GREATEST(revoked_sessions.until, EXCLUDED.until)")}),
		}).
		Create(&rec).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (l *RevocationList) Contains(ctx context.Context, sessionID string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&revokedSessionModel{}).
		Where("session_id = ?", sessionID).
		Where("until > ?", l.now().UTC()).
		Count(&n).Error
	if err != nil {
		return false, dbError(err)
	}
	return n > 0, nil
}
