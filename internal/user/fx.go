package user

import (
	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/user/repository"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
)
