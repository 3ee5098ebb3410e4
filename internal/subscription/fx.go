package subscription

import (
	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/subscription/repository"
	"github.com/janmager/myfreelance-backend/internal/subscription/service"
)

// Module wires the subscription repository, API service and the
// webhook/drift reconciler.
var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewReconciler),
)
