package domain

import (
	"context"

	"gorm.io/gorm"

	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
)

// Counter reads per-user usage. It takes the caller's db handle so
// limit checks can count inside their own transaction.
type Counter interface {
	CountResource(ctx context.Context, db *gorm.DB, userID string, kind entitlementdomain.ResourceKind) (int64, error)
	SumFileBytes(ctx context.Context, db *gorm.DB, userID string) (int64, error)
}

type Service interface {
	Overview(ctx context.Context, userID string) (*Overview, error)

	// AdminStats aggregates platform-wide numbers for the admin panel.
	AdminStats(ctx context.Context) (*AdminStats, error)
}
