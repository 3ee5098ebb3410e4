package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/billing"
	"github.com/janmager/myfreelance-backend/internal/clock"
	"github.com/janmager/myfreelance-backend/internal/config"
	"github.com/janmager/myfreelance-backend/internal/entitlement"
	"github.com/janmager/myfreelance-backend/internal/migration"
	"github.com/janmager/myfreelance-backend/internal/observability"
	"github.com/janmager/myfreelance-backend/internal/scheduler"
	"github.com/janmager/myfreelance-backend/internal/server"
	"github.com/janmager/myfreelance-backend/internal/subscription"
	"github.com/janmager/myfreelance-backend/internal/usage"
	"github.com/janmager/myfreelance-backend/internal/user"
	"github.com/janmager/myfreelance-backend/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains
		user.Module,
		entitlement.Module,
		usage.Module,
		billing.Module,
		subscription.Module,

		// Background jobs and HTTP surface
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
