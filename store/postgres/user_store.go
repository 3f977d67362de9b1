package postgres

import (
	"context"
	"errors"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errInvalidRole = errors.New("invalid role")

// UserDirectory is an otpAuth.UserProvider over the auth_users table.
type UserDirectory struct {
	db          *gorm.DB
	defaultRole otpAuth.Role
	now         func() time.Time
}

// NewUserDirectory creates users with defaultRole on first login. An invalid
// role falls back to RoleBuyer.
func NewUserDirectory(db *gorm.DB, defaultRole otpAuth.Role) *UserDirectory {
	if !defaultRole.Valid() {
		defaultRole = otpAuth.RoleBuyer
	}
	return &UserDirectory{db: db, defaultRole: defaultRole, now: time.Now}
}

// FindOrCreateByEmail inserts with ON CONFLICT DO NOTHING, so concurrent
// first logins converge on one row.
func (d *UserDirectory) FindOrCreateByEmail(ctx context.Context, email string) (otpAuth.User, error) {
	now := d.now().UTC()
	rec := userModel{
		UserID:    uuid.NewString(),
		Email:     email,
		Role:      string(d.defaultRole),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return otpAuth.User{}, dbError(err)
	}

	var found userModel
	if err := d.db.WithContext(ctx).Where("email = ?", email).Take(&found).Error; err != nil {
		return otpAuth.User{}, dbError(err)
	}
	return toUser(found), nil
}

func (d *UserDirectory) UserByID(ctx context.Context, id string) (otpAuth.User, error) {
	var rec userModel
	if err := d.db.WithContext(ctx).Where("user_id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return otpAuth.User{}, otpAuth.ErrUserNotFound
		}
		return otpAuth.User{}, dbError(err)
	}
	return toUser(rec), nil
}

// SetRole changes a user's role. Strict validation observes the change on
// the next request.
func (d *UserDirectory) SetRole(ctx context.Context, id string, role otpAuth.Role) error {
	if !role.Valid() {
		return errInvalidRole
	}
	res := d.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", id).
		Updates(map[string]any{"role": string(role), "updated_at": d.now().UTC()})
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return otpAuth.ErrUserNotFound
	}
	return nil
}
