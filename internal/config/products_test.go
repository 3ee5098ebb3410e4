package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProductCatalogDefaults(t *testing.T) {
	cfg := Config{
		Stripe:       StripeConfig{PremiumPriceID: "price_p", GoldPriceID: "price_g"},
		LemonSqueezy: LemonSqueezyConfig{PremiumVariantID: "111", GoldVariantID: "222"},
	}

	catalog, err := NewProductCatalog(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	premium, err := catalog.ByName("Premium")
	require.NoError(t, err)
	assert.Equal(t, 1, premium.PremiumLevel)
	assert.Equal(t, "price_p", premium.StripePriceID)

	gold, err := catalog.ByProviderPriceID("222")
	require.NoError(t, err)
	assert.Equal(t, "gold", gold.Name)
	assert.Equal(t, 2, gold.PremiumLevel)

	_, err = catalog.ByName("platinum")
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = catalog.ByProviderPriceID("")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestStaticCatalogLookups(t *testing.T) {
	catalog := NewStaticCatalog([]Product{
		{Name: "premium", PremiumLevel: 1, StripePriceID: "price_premium"},
	})

	p, err := catalog.ByProviderPriceID("price_premium")
	require.NoError(t, err)
	assert.Equal(t, "premium", p.Name)

	_, err = catalog.ByProviderPriceID("price_other")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}
