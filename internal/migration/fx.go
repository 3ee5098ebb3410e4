package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/config"
	"github.com/janmager/myfreelance-backend/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, logger *zap.Logger) error {
		if cfg.DBType != "postgres" {
			logger.Warn("skipping migrations for non-postgres database",
				zap.String("db_type", cfg.DBType))
			return seed.EnsureDefaultLimits(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureDefaultLimits(conn)
	}),
)
