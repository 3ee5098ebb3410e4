// Package domain contains persistence models for application users.
package domain

import (
	"time"
)

// UserType distinguishes regular accounts from admin accounts.
type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

// UserState is the account lifecycle state.
type UserState string

const (
	UserStateActive  UserState = "active"
	UserStateBlocked UserState = "blocked"
	UserStateDeleted UserState = "deleted"
)

// User is the account row. PremiumLevel is a cached projection of the
// subscription state; only the reconciler and the drift corrector write it.
type User struct {
	UserID       string    `gorm:"column:user_id;primaryKey"`
	Email        string    `gorm:"not null"`
	Name         string    `gorm:"not null"`
	Type         UserType  `gorm:"type:text;not null;default:user"`
	State        UserState `gorm:"type:text;not null;default:active"`
	PremiumLevel int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the account may call admin endpoints.
func (u *User) IsAdmin() bool {
	return u != nil && u.Type == UserTypeAdmin && u.State == UserStateActive
}
