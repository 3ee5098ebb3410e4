// Package domain defines the provider-agnostic billing event model and
// the adapter contract both payment providers implement.
package domain

import "time"

// EventType is the normalized webhook event type. Provider adapters map
// their native event names onto these.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout_completed"
	EventSubscriptionCreated  EventType = "subscription_created"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_cancelled"
	EventSubscriptionResumed  EventType = "subscription_resumed"
	EventSubscriptionExpired  EventType = "subscription_expired"
	EventSubscriptionPaused   EventType = "subscription_paused"
	EventSubscriptionUnpaused EventType = "subscription_unpaused"
	EventPaymentSucceeded     EventType = "payment_succeeded"
	EventPaymentFailed        EventType = "payment_failed"
)

// Event is a normalized webhook event. Identity fields that the
// provider payload does not carry stay empty; the reconciler hydrates
// them from the provider API when it needs them.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            EventType

	// Metadata attached at checkout time. Either both are set or the
	// event is anonymous and the reconciler resolves the owner by
	// subscription id or email.
	UserID      string
	ProductName string
	Email       string

	ProviderSubscriptionID string
	ProviderCustomerID     string
	ProviderCheckoutID     string
	ProviderPriceID        string

	// Status is the provider-native subscription status, when present.
	Status string

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool

	OccurredAt time.Time
	RawPayload []byte
}

// ProviderSubscription is the provider's current view of one
// subscription, fetched from its API.
type ProviderSubscription struct {
	ID                 string
	Status             string
	PriceID            string
	CustomerID         string
	UserID             string
	ProductName        string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// CheckoutRequest asks a provider to start a hosted checkout.
type CheckoutRequest struct {
	UserID      string
	Email       string
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider's hosted checkout handle.
type CheckoutSession struct {
	ID  string
	URL string
}
