package billing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/janmager/myfreelance-backend/internal/billing/adapters"
	"github.com/janmager/myfreelance-backend/internal/billing/adapters/lemonsqueezy"
	"github.com/janmager/myfreelance-backend/internal/billing/adapters/stripe"
	billingdomain "github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/config"
)

var Module = fx.Module("billing",
	fx.Provide(NewRegistry),
)

// NewRegistry builds the provider registry from whatever providers are
// configured. An unconfigured provider is skipped, not fatal.
func NewRegistry(cfg config.Config, catalog *config.ProductCatalog, logger *zap.Logger) *adapters.Registry {
	providers := []billingdomain.Provider{}

	if adapter, err := stripe.NewAdapter(cfg, catalog); err == nil {
		providers = append(providers, adapter)
	} else {
		logger.Warn("stripe adapter disabled", zap.Error(err))
	}

	if adapter, err := lemonsqueezy.NewAdapter(cfg, catalog); err == nil {
		providers = append(providers, adapter)
	} else {
		logger.Warn("lemonsqueezy adapter disabled", zap.Error(err))
	}

	return adapters.NewRegistry(providers...)
}
