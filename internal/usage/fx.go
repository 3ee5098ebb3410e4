package usage

import (
	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/usage/service"
)

var Module = fx.Module("usage.service",
	fx.Provide(service.ProvideCounter),
	fx.Provide(service.NewService),
)
