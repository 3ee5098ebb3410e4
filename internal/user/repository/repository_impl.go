package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID string) (*userdomain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, userdomain.ErrUserIDMissing
	}

	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, email, name, type, state, premium_level, created_at, updated_at
		 FROM users WHERE user_id = ?`,
		userID,
	).Scan(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userdomain.ErrUserNotFound
		}
		return nil, err
	}
	if user.UserID == "" {
		return nil, userdomain.ErrUserNotFound
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*userdomain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, userdomain.ErrUserNotFound
	}

	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, email, name, type, state, premium_level, created_at, updated_at
		 FROM users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userdomain.ErrUserNotFound
		}
		return nil, err
	}
	if user.UserID == "" {
		return nil, userdomain.ErrUserNotFound
	}
	return &user, nil
}

func (r *repo) SetPremiumLevel(ctx context.Context, db *gorm.DB, userID string, level int, now time.Time) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return userdomain.ErrUserIDMissing
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE users SET premium_level = ?, updated_at = ? WHERE user_id = ?`,
		level,
		now,
		userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return userdomain.ErrUserNotFound
	}
	return nil
}
