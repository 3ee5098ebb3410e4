// Package domain contains the subscription record and its lifecycle
// states.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/janmager/myfreelance-backend/internal/config"
)

// Status is the lifecycle state of a subscription record.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusPastDue Status = "past_due"
	// StatusCancelled means the provider terminated the subscription;
	// access is gone.
	StatusCancelled Status = "cancelled"
	// StatusCancelledAtPeriodEnd means the user asked to cancel but the
	// paid period still runs; access stays until it ends.
	StatusCancelledAtPeriodEnd Status = "cancelled_at_period_end"
	StatusExpired              Status = "expired"
	StatusPaused               Status = "paused"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPastDue, StatusCancelled,
		StatusCancelledAtPeriodEnd, StatusExpired, StatusPaused:
		return true
	default:
		return false
	}
}

// Subscription is one user/product billing agreement mirrored from a
// payment provider.
type Subscription struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID string       `gorm:"column:subscription_id;not null;uniqueIndex"`
	UserID         string       `gorm:"not null;index"`
	ProductName    string       `gorm:"not null"`
	Provider       string       `gorm:"not null"`

	ProviderSubscriptionID string `gorm:"column:provider_subscription_id"`
	ProviderCustomerID     string `gorm:"column:provider_customer_id"`
	ProviderCheckoutID     string `gorm:"column:provider_checkout_id"`
	ProviderPriceID        string `gorm:"column:provider_price_id"`

	Status Status `gorm:"type:text;not null;default:pending"`

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	ExpiresAt          *time.Time
	CancelledAt        *time.Time

	// ProviderUpdatedAt is the provider-side timestamp of the last
	// applied event. Writes carrying an older timestamp are dropped so
	// out-of-order webhook deliveries cannot regress state.
	ProviderUpdatedAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "user_subscriptions" }

// NormalizeStatus maps a provider-native subscription status onto the
// local lifecycle. Lemon Squeezy's "cancelled" is a pending
// period-end cancellation, not a termination; termination arrives
// later as "expired".
func NormalizeStatus(provider, native string) Status {
	switch provider {
	case config.ProviderStripe:
		switch native {
		case "active", "trialing":
			return StatusActive
		case "past_due", "unpaid":
			return StatusPastDue
		case "canceled":
			return StatusCancelled
		case "incomplete":
			return StatusPending
		case "incomplete_expired":
			return StatusExpired
		case "paused":
			return StatusPaused
		}
	case config.ProviderLemonSqueezy:
		switch native {
		case "on_trial", "active":
			return StatusActive
		case "past_due", "unpaid":
			return StatusPastDue
		case "cancelled":
			return StatusCancelledAtPeriodEnd
		case "expired":
			return StatusExpired
		case "paused":
			return StatusPaused
		}
	}
	return StatusPending
}

// CheckoutResponse is returned from a checkout initiation.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	CheckoutID  string `json:"checkout_id"`
}

// Info is the API view of a subscription.
type Info struct {
	ID                     string     `json:"id"`
	ProductName            string     `json:"product_name"`
	Provider               string     `json:"provider"`
	Status                 Status     `json:"status"`
	PremiumLevel           int        `json:"premium_level"`
	CreatedAt              time.Time  `json:"created_at"`
	ExpiresAt              *time.Time `json:"expires_at"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
}

// PremiumStatus is the API view of one user's tier plus their latest
// relevant subscription, if any.
type PremiumStatus struct {
	PremiumLevel int    `json:"premium_level"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Subscription *Info  `json:"subscription"`
}

// ManagementInfo describes how the user manages their subscription.
type ManagementInfo struct {
	Provider          string     `json:"provider"`
	ProductName       string     `json:"product_name"`
	Status            Status     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanCancel         bool       `json:"can_cancel"`
	CanResume         bool       `json:"can_resume"`
}
