package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) UpsertPending(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_subscriptions (
			id, subscription_id, user_id, product_name, provider,
			provider_subscription_id, provider_customer_id, provider_checkout_id, provider_price_id,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, product_name) DO UPDATE SET
			provider = EXCLUDED.provider,
			provider_checkout_id = EXCLUDED.provider_checkout_id,
			provider_price_id = EXCLUDED.provider_price_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		sub.ID,
		sub.SubscriptionID,
		sub.UserID,
		sub.ProductName,
		sub.Provider,
		sub.ProviderSubscriptionID,
		sub.ProviderCustomerID,
		sub.ProviderCheckoutID,
		sub.ProviderPriceID,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) UpsertFromProvider(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO user_subscriptions (
			id, subscription_id, user_id, product_name, provider,
			provider_subscription_id, provider_customer_id, provider_checkout_id, provider_price_id,
			status, current_period_start, current_period_end, expires_at, cancelled_at,
			provider_updated_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, product_name) DO UPDATE SET
			provider = EXCLUDED.provider,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			provider_customer_id = CASE WHEN EXCLUDED.provider_customer_id <> ''
				THEN EXCLUDED.provider_customer_id ELSE user_subscriptions.provider_customer_id END,
			provider_checkout_id = CASE WHEN EXCLUDED.provider_checkout_id <> ''
				THEN EXCLUDED.provider_checkout_id ELSE user_subscriptions.provider_checkout_id END,
			provider_price_id = CASE WHEN EXCLUDED.provider_price_id <> ''
				THEN EXCLUDED.provider_price_id ELSE user_subscriptions.provider_price_id END,
			status = EXCLUDED.status,
			current_period_start = COALESCE(EXCLUDED.current_period_start, user_subscriptions.current_period_start),
			current_period_end = COALESCE(EXCLUDED.current_period_end, user_subscriptions.current_period_end),
			expires_at = COALESCE(EXCLUDED.expires_at, user_subscriptions.expires_at),
			cancelled_at = COALESCE(EXCLUDED.cancelled_at, user_subscriptions.cancelled_at),
			provider_updated_at = EXCLUDED.provider_updated_at,
			updated_at = EXCLUDED.updated_at
		WHERE user_subscriptions.provider_updated_at IS NULL
			OR user_subscriptions.provider_updated_at <= EXCLUDED.provider_updated_at`,
		sub.ID,
		sub.SubscriptionID,
		sub.UserID,
		sub.ProductName,
		sub.Provider,
		sub.ProviderSubscriptionID,
		sub.ProviderCustomerID,
		sub.ProviderCheckoutID,
		sub.ProviderPriceID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.ExpiresAt,
		sub.CancelledAt,
		sub.ProviderUpdatedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ApplyProviderState(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string, state subscriptiondomain.ProviderState, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_subscriptions SET
			status = ?,
			current_period_start = COALESCE(?, current_period_start),
			current_period_end = COALESCE(?, current_period_end),
			expires_at = COALESCE(?, expires_at),
			cancelled_at = COALESCE(?, cancelled_at),
			provider_price_id = COALESCE(?, provider_price_id),
			product_name = COALESCE(?, product_name),
			provider_updated_at = ?,
			updated_at = ?
		WHERE provider = ? AND provider_subscription_id = ?
			AND (provider_updated_at IS NULL OR provider_updated_at <= ?)`,
		state.Status,
		state.CurrentPeriodStart,
		state.CurrentPeriodEnd,
		state.ExpiresAt,
		state.CancelledAt,
		state.ProviderPriceID,
		state.ProductName,
		state.EventTime,
		now,
		provider,
		providerSubscriptionID,
		state.EventTime,
	)
	return res.RowsAffected, res.Error
}

const selectColumns = `id, subscription_id, user_id, product_name, provider,
	provider_subscription_id, provider_customer_id, provider_checkout_id, provider_price_id,
	status, current_period_start, current_period_end, expires_at, cancelled_at,
	provider_updated_at, created_at, updated_at`

func (r *repo) FindByProviderSubscriptionID(ctx context.Context, db *gorm.DB, provider, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM user_subscriptions
		 WHERE provider = ? AND provider_subscription_id = ?`,
		provider,
		providerSubscriptionID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) FindByUserProduct(ctx context.Context, db *gorm.DB, userID, productName string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM user_subscriptions
		 WHERE user_id = ? AND product_name = ?`,
		userID,
		productName,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) FindByUserSubscriptionID(ctx context.Context, db *gorm.DB, userID, subscriptionID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM user_subscriptions
		 WHERE user_id = ? AND subscription_id = ?`,
		userID,
		subscriptionID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) FindLatestByUser(ctx context.Context, db *gorm.DB, userID string, statuses []subscriptiondomain.Status) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM user_subscriptions
		 WHERE user_id = ? AND status IN ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID,
		statuses,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) ListActiveWithProviderID(ctx context.Context, db *gorm.DB) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM user_subscriptions
		 WHERE status IN ? AND provider_subscription_id IS NOT NULL AND provider_subscription_id <> ''`,
		[]subscriptiondomain.Status{
			subscriptiondomain.StatusActive,
			subscriptiondomain.StatusPastDue,
			subscriptiondomain.StatusCancelledAtPeriodEnd,
			subscriptiondomain.StatusPaused,
		},
	).Scan(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id string, status subscriptiondomain.Status, cancelledAt *time.Time, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE user_subscriptions SET
			status = ?,
			cancelled_at = COALESCE(?, cancelled_at),
			updated_at = ?
		WHERE subscription_id = ?`,
		status,
		cancelledAt,
		now,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	return nil
}
