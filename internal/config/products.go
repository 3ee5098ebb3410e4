package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Product describes one purchasable subscription plan and the premium level
// it grants. Provider identifiers come from the environment by default and
// can be overridden per-deployment through products.yml.
type Product struct {
	Name                  string  `mapstructure:"name"`
	DisplayName           string  `mapstructure:"displayName"`
	Description           string  `mapstructure:"description"`
	Price                 float64 `mapstructure:"price"`
	Currency              string  `mapstructure:"currency"`
	PremiumLevel          int     `mapstructure:"premiumLevel"`
	StripePriceID         string  `mapstructure:"stripePriceId"`
	LemonSqueezyVariantID string  `mapstructure:"lemonSqueezyVariantId"`
}

type productsConfig struct {
	Products []Product `mapstructure:"products"`
}

var ErrUnknownProduct = errors.New("unknown_product")

func defaultProducts(cfg Config) []Product {
	return []Product{
		{
			Name:                  "premium",
			DisplayName:           "Premium Plan",
			Description:           "Unlock premium features with increased limits",
			Price:                 19.00,
			Currency:              "PLN",
			PremiumLevel:          1,
			StripePriceID:         cfg.Stripe.PremiumPriceID,
			LemonSqueezyVariantID: cfg.LemonSqueezy.PremiumVariantID,
		},
		{
			Name:                  "gold",
			DisplayName:           "Gold Plan",
			Description:           "Maximum limits and exclusive features",
			Price:                 49.00,
			Currency:              "PLN",
			PremiumLevel:          2,
			StripePriceID:         cfg.Stripe.GoldPriceID,
			LemonSqueezyVariantID: cfg.LemonSqueezy.GoldVariantID,
		},
	}
}

// ProductCatalog resolves product names and provider price identifiers to
// plan configuration. The backing file is hot-reloaded so a plan change does
// not require a restart.
type ProductCatalog struct {
	current atomic.Value // holds []Product
}

func NewProductCatalog(cfg Config, logger *zap.Logger) (*ProductCatalog, error) {
	log := logger.Named("products.catalog")
	v := viper.New()

	v.SetConfigName("products")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/myfreelance")
	v.AddConfigPath(".")

	catalog := &ProductCatalog{}
	catalog.current.Store(defaultProducts(cfg))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return catalog, nil
	}

	var parsed productsConfig
	if err := v.Unmarshal(&parsed); err != nil {
		return nil, err
	}
	if err := validateProducts(parsed.Products); err != nil {
		return nil, err
	}
	catalog.current.Store(parsed.Products)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated productsConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("product catalog reload failed", zap.Error(err))
			return
		}
		if err := validateProducts(updated.Products); err != nil {
			log.Warn("invalid product catalog ignored", zap.Error(err))
			return
		}
		catalog.current.Store(updated.Products)
		log.Info("product catalog reloaded", zap.String("file", e.Name))
	})

	return catalog, nil
}

// NewStaticCatalog builds a catalog from a fixed product list. Test seam.
func NewStaticCatalog(products []Product) *ProductCatalog {
	catalog := &ProductCatalog{}
	catalog.current.Store(products)
	return catalog
}

func (c *ProductCatalog) Products() []Product {
	return c.current.Load().([]Product)
}

// ByName resolves a product by its plan name (premium, gold).
func (c *ProductCatalog) ByName(name string) (Product, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range c.Products() {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Product{}, ErrUnknownProduct
}

// ByProviderPriceID resolves a product from the provider-side price or
// variant identifier. Drift correction uses this so a provider-side plan
// change maps to the right tier.
func (c *ProductCatalog) ByProviderPriceID(priceID string) (Product, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return Product{}, ErrUnknownProduct
	}
	for _, p := range c.Products() {
		if p.StripePriceID == priceID || p.LemonSqueezyVariantID == priceID {
			return p, nil
		}
	}
	return Product{}, ErrUnknownProduct
}

func validateProducts(products []Product) error {
	if len(products) == 0 {
		return errors.New("products cannot be empty")
	}
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("product name cannot be empty")
		}
		if p.PremiumLevel < 1 || p.PremiumLevel > 2 {
			return errors.New("product premiumLevel must be 1 or 2")
		}
	}
	return nil
}
