package service

import (
	"context"

	"gorm.io/gorm"

	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
)

type counter struct{}

func ProvideCounter() usagedomain.Counter {
	return &counter{}
}

// countTables maps a resource kind to the table it is counted from.
// The whitelist keeps user input out of SQL identifiers.
var countTables = map[entitlementdomain.ResourceKind]string{
	entitlementdomain.ResourceClients:    "clients",
	entitlementdomain.ResourceProjects:   "projects",
	entitlementdomain.ResourceNotes:      "notes",
	entitlementdomain.ResourceContracts:  "contracts",
	entitlementdomain.ResourceLinks:      "links",
	entitlementdomain.ResourceTasks:      "tasks",
	entitlementdomain.ResourceValuations: "valuations",
}

func (c *counter) CountResource(ctx context.Context, db *gorm.DB, userID string, kind entitlementdomain.ResourceKind) (int64, error) {
	table, ok := countTables[kind]
	if !ok {
		return 0, entitlementdomain.ErrUnknownResource
	}

	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM `+table+` WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *counter) SumFileBytes(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(file_size), 0) FROM files WHERE user_id = ?`,
		userID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
