package domain

import (
	"context"
	"net/http"
)

// Provider is one payment provider integration. Adapters talk to the
// provider's REST API directly; no SDK.
type Provider interface {
	Name() string

	// VerifyWebhook authenticates a raw webhook delivery before any
	// parsing happens.
	VerifyWebhook(payload []byte, header http.Header) error

	// ParseWebhook maps a verified payload onto the normalized Event.
	// Unhandled event types return ErrEventIgnored.
	ParseWebhook(payload []byte) (*Event, error)

	RetrieveSubscription(ctx context.Context, providerSubscriptionID string) (*ProviderSubscription, error)

	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CancelSubscription with atPeriodEnd keeps the subscription alive
	// until the paid period runs out.
	CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error

	// ResumeSubscription undoes a pending cancel-at-period-end.
	ResumeSubscription(ctx context.Context, providerSubscriptionID string) error
}
