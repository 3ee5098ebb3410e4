package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ProviderState is a guarded write derived from a provider event or an
// API read. Nil optional fields keep the stored value.
type ProviderState struct {
	Status             Status
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	ExpiresAt          *time.Time
	CancelledAt        *time.Time
	ProviderPriceID    *string

	// ProductName follows provider-side plan changes so the row keeps
	// naming the plan the price id actually maps to.
	ProductName *string

	// EventTime is the provider-side timestamp guarding the write.
	EventTime time.Time
}

type Repository interface {
	// UpsertPending writes the local record for a freshly initiated
	// checkout. On conflict the checkout fields are replaced but the
	// ordering guard column is left alone.
	UpsertPending(ctx context.Context, db *gorm.DB, sub *Subscription) error

	// UpsertFromProvider inserts or updates the (user_id, product_name)
	// row from a provider event. Returns the number of rows written;
	// zero means the event was older than the stored state.
	UpsertFromProvider(ctx context.Context, db *gorm.DB, sub *Subscription) (int64, error)

	// ApplyProviderState updates the row identified by provider
	// subscription id, guarded by the event timestamp.
	ApplyProviderState(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string, state ProviderState, now time.Time) (int64, error)

	FindByProviderSubscriptionID(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string) (*Subscription, error)
	FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productName string) (*Subscription, error)
	FindByUserSubscriptionID(ctx context.Context, db *gorm.DB, userID, subscriptionID string) (*Subscription, error)
	FindLatestByUser(ctx context.Context, db *gorm.DB, userID string, statuses []Status) (*Subscription, error)

	// ListActiveWithProviderID returns subscriptions the drift corrector
	// should verify against provider truth.
	ListActiveWithProviderID(ctx context.Context, db *gorm.DB) ([]Subscription, error)

	UpdateStatus(ctx context.Context, db *gorm.DB, id string, status Status, cancelledAt *time.Time, now time.Time) error
}
