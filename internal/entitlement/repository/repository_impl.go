package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
)

type repo struct{}

func Provide() entitlementdomain.Repository {
	return &repo{}
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*entitlementdomain.Limit, error) {
	var limit entitlementdomain.Limit
	err := db.WithContext(ctx).Raw(
		`SELECT name, premium_level_0, premium_level_1, premium_level_2, updated_at
		 FROM limits WHERE name = ?`,
		name,
	).Scan(&limit).Error
	if err != nil {
		return nil, err
	}
	if limit.Name == "" {
		return nil, entitlementdomain.ErrLimitNotConfigured
	}
	return &limit, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]entitlementdomain.Limit, error) {
	var limits []entitlementdomain.Limit
	err := db.WithContext(ctx).Raw(
		`SELECT name, premium_level_0, premium_level_1, premium_level_2, updated_at
		 FROM limits ORDER BY name`,
	).Scan(&limits).Error
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, limit entitlementdomain.Limit, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE limits
		 SET premium_level_0 = ?, premium_level_1 = ?, premium_level_2 = ?, updated_at = ?
		 WHERE name = ?`,
		limit.PremiumLevel0,
		limit.PremiumLevel1,
		limit.PremiumLevel2,
		now,
		limit.Name,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entitlementdomain.ErrLimitNotConfigured
	}
	return nil
}
