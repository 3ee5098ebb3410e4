package entitlement

import (
	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/entitlement/repository"
	"github.com/janmager/myfreelance-backend/internal/entitlement/service"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
