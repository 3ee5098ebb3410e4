package seed

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type defaultLimit struct {
	Name   string
	Level0 int64
	Level1 int64
	Level2 int64
}

// Default per-tier limits. Admins can adjust them later through the
// admin limits API; existing rows are never overwritten here.
var defaultLimits = []defaultLimit{
	{Name: "clients", Level0: 3, Level1: 50, Level2: 1000},
	{Name: "projects", Level0: 3, Level1: 50, Level2: 1000},
	{Name: "notes", Level0: 10, Level1: 100, Level2: 1000},
	{Name: "contracts", Level0: 3, Level1: 50, Level2: 1000},
	{Name: "links", Level0: 5, Level1: 50, Level2: 1000},
	{Name: "tasks", Level0: 20, Level1: 200, Level2: 2000},
	{Name: "valuations", Level0: 3, Level1: 50, Level2: 1000},
	{Name: "files_mb", Level0: 20, Level1: 512, Level2: 4096},
}

// EnsureDefaultLimits inserts the limit rows a fresh install needs.
// Every resource kind must have a row or limit checks fail closed.
func EnsureDefaultLimits(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range defaultLimits {
			err := tx.Exec(`
INSERT INTO limits (name, premium_level_0, premium_level_1, premium_level_2, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO NOTHING
`, l.Name, l.Level0, l.Level1, l.Level2).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
