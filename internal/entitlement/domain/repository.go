package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Limit, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Limit, error)
	Update(ctx context.Context, db *gorm.DB, limit Limit, now time.Time) error
}
