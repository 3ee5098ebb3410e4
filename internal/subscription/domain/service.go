package domain

import (
	"context"
	"net/http"
)

type Service interface {
	// Checkout starts a hosted checkout for the given product and
	// records a pending subscription.
	Checkout(ctx context.Context, userID, productName, provider string) (*CheckoutResponse, error)

	// Cancel requests a period-end cancellation: the provider keeps the
	// subscription until the paid period runs out and access stays.
	Cancel(ctx context.Context, userID, subscriptionID string) error

	// Resume undoes a pending period-end cancellation.
	Resume(ctx context.Context, userID, subscriptionID string) error

	GetSubscription(ctx context.Context, userID string) (*Info, error)
	PremiumStatus(ctx context.Context, userID string) (*PremiumStatus, error)
	ManagementInfo(ctx context.Context, userID string) (*ManagementInfo, error)
}

// Reconciler applies provider webhook deliveries and periodic drift
// checks to the local subscription state.
type Reconciler interface {
	// HandleWebhook verifies, parses and applies one raw delivery.
	HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error

	// ReconcileWithProviders walks subscriptions that claim to be live
	// and corrects any drift against provider truth. Per-item failures
	// are logged and skipped.
	ReconcileWithProviders(ctx context.Context) (int, error)
}
