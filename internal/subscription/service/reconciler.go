package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/billing/adapters"
	billingdomain "github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/clock"
	"github.com/janmager/myfreelance-backend/internal/config"
	obsmetrics "github.com/janmager/myfreelance-backend/internal/observability/metrics"
	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

// keepPremiumLevel marks transitions that leave the user's tier alone.
const keepPremiumLevel = -1

type ReconcilerParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Catalog  *config.ProductCatalog
	Registry *adapters.Registry
	Repo     subscriptiondomain.Repository
	UserRepo userdomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Reconciler converges local subscription state with provider truth,
// from webhook events and from periodic drift checks.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	catalog  *config.ProductCatalog
	registry *adapters.Registry
	repo     subscriptiondomain.Repository
	userRepo userdomain.Repository
	metrics  *obsmetrics.Metrics
}

func NewReconciler(p ReconcilerParam) subscriptiondomain.Reconciler {
	return &Reconciler{
		db:       p.DB,
		log:      p.Log.Named("subscription.reconciler"),
		clock:    p.Clock,
		genID:    p.GenID,
		catalog:  p.Catalog,
		registry: p.Registry,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		metrics:  p.Metrics,
	}
}

// HandleWebhook verifies, parses and applies one raw webhook delivery.
// A nil return means the delivery is acknowledged; errors mean the
// provider should retry.
func (r *Reconciler) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) error {
	adapter, err := r.registry.ForName(provider)
	if err != nil {
		return err
	}

	if err := adapter.VerifyWebhook(payload, header); err != nil {
		r.metrics.IncWebhookEvent(adapter.Name(), "unknown", obsmetrics.WebhookResultRejected)
		r.log.Warn("webhook signature rejected", zap.String("provider", adapter.Name()))
		return err
	}

	event, err := adapter.ParseWebhook(payload)
	if err != nil {
		if errors.Is(err, billingdomain.ErrEventIgnored) {
			r.metrics.IncWebhookEvent(adapter.Name(), "unknown", obsmetrics.WebhookResultIgnored)
			return nil
		}
		r.metrics.IncWebhookEvent(adapter.Name(), "unknown", obsmetrics.WebhookResultRejected)
		return err
	}

	log := r.log.With(
		zap.String("provider", event.Provider),
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ProviderEventID),
	)

	applied, err := r.apply(ctx, adapter, event)
	if err != nil {
		r.metrics.IncWebhookEvent(event.Provider, string(event.Type), obsmetrics.WebhookResultFailed)
		log.Error("webhook apply failed", zap.Error(err))
		return err
	}
	if !applied {
		r.metrics.IncWebhookEvent(event.Provider, string(event.Type), obsmetrics.WebhookResultIgnored)
		return nil
	}

	r.metrics.IncWebhookEvent(event.Provider, string(event.Type), obsmetrics.WebhookResultApplied)
	log.Info("webhook applied")
	return nil
}

// apply routes one parsed event. The bool reports whether state
// actually changed; stale or unresolvable events come back false with
// a nil error so the delivery is still acknowledged.
func (r *Reconciler) apply(ctx context.Context, adapter billingdomain.Provider, event *billingdomain.Event) (bool, error) {
	switch event.Type {
	case billingdomain.EventCheckoutCompleted,
		billingdomain.EventSubscriptionCreated,
		billingdomain.EventSubscriptionUpdated,
		billingdomain.EventSubscriptionResumed,
		billingdomain.EventSubscriptionUnpaused,
		billingdomain.EventSubscriptionPaused,
		billingdomain.EventSubscriptionCanceled,
		billingdomain.EventSubscriptionExpired:
		return r.applySubscriptionEvent(ctx, adapter, event)

	case billingdomain.EventPaymentSucceeded:
		return r.applyPaymentSucceeded(ctx, adapter, event)

	case billingdomain.EventPaymentFailed:
		return r.applyPaymentFailed(ctx, event)

	default:
		r.log.Debug("unhandled event type", zap.String("event_type", string(event.Type)))
		return false, nil
	}
}

func (r *Reconciler) applySubscriptionEvent(ctx context.Context, adapter billingdomain.Provider, event *billingdomain.Event) (bool, error) {
	status := r.statusFor(event)
	eventTime := r.eventTime(event)

	// Checkout completions rarely carry the full subscription; hydrate
	// period dates and price from the provider before storing.
	if event.ProviderSubscriptionID != "" && (event.CurrentPeriodEnd == nil || event.Status == "") {
		if ps, err := adapter.RetrieveSubscription(ctx, event.ProviderSubscriptionID); err == nil {
			hydrateEvent(event, ps)
			status = r.statusFor(event)
		} else {
			r.log.Warn("subscription hydration failed",
				zap.String("provider_subscription_id", event.ProviderSubscriptionID),
				zap.Error(err),
			)
		}
	}

	if event.ProviderSubscriptionID == "" {
		r.log.Warn("event carries no subscription id, skipping",
			zap.String("event_id", event.ProviderEventID))
		return false, nil
	}

	existing, err := r.repo.FindByProviderSubscriptionID(ctx, r.db, event.Provider, event.ProviderSubscriptionID)
	if err != nil && !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return false, err
	}

	if existing == nil {
		return r.insertFromEvent(ctx, event, status, eventTime)
	}

	state := stateFromEvent(event, status, eventTime)
	rows, err := r.repo.ApplyProviderState(ctx, r.db, event.Provider, event.ProviderSubscriptionID, state, r.clock.Now())
	if err != nil {
		return false, err
	}
	if rows == 0 {
		r.log.Info("stale event dropped",
			zap.String("provider_subscription_id", event.ProviderSubscriptionID),
			zap.Time("event_time", eventTime),
		)
		return false, nil
	}

	r.propagatePremiumLevel(ctx, existing.UserID, existing.ProductName, event.ProviderPriceID, status)
	return true, nil
}

// insertFromEvent writes a row for a subscription seen for the first
// time. The owner comes from checkout metadata, or failing that from
// the customer email.
func (r *Reconciler) insertFromEvent(ctx context.Context, event *billingdomain.Event, status subscriptiondomain.Status, eventTime time.Time) (bool, error) {
	userID := strings.TrimSpace(event.UserID)
	if userID == "" && event.Email != "" {
		if user, err := r.userRepo.FindByEmail(ctx, r.db, event.Email); err == nil {
			userID = user.UserID
		}
	}
	if userID == "" {
		r.log.Warn("cannot resolve subscription owner, skipping",
			zap.String("event_id", event.ProviderEventID),
			zap.String("provider_subscription_id", event.ProviderSubscriptionID),
		)
		return false, nil
	}

	productName := strings.TrimSpace(event.ProductName)
	if productName == "" && event.ProviderPriceID != "" {
		if product, err := r.catalog.ByProviderPriceID(event.ProviderPriceID); err == nil {
			productName = product.Name
		}
	}
	if productName == "" {
		r.log.Warn("cannot resolve product, skipping",
			zap.String("event_id", event.ProviderEventID),
			zap.String("price_id", event.ProviderPriceID),
		)
		return false, nil
	}

	now := r.clock.Now()
	id := r.genID.Generate()
	record := &subscriptiondomain.Subscription{
		ID:                     id,
		SubscriptionID:         "sub_" + id.String(),
		UserID:                 userID,
		ProductName:            productName,
		Provider:               event.Provider,
		ProviderSubscriptionID: event.ProviderSubscriptionID,
		ProviderCustomerID:     event.ProviderCustomerID,
		ProviderCheckoutID:     event.ProviderCheckoutID,
		ProviderPriceID:        event.ProviderPriceID,
		Status:                 status,
		CurrentPeriodStart:     event.CurrentPeriodStart,
		CurrentPeriodEnd:       event.CurrentPeriodEnd,
		ProviderUpdatedAt:      &eventTime,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if status == subscriptiondomain.StatusCancelled || status == subscriptiondomain.StatusExpired {
		record.ExpiresAt = &eventTime
		record.CancelledAt = &eventTime
	}

	rows, err := r.repo.UpsertFromProvider(ctx, r.db, record)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		r.log.Info("stale event dropped on upsert",
			zap.String("provider_subscription_id", event.ProviderSubscriptionID))
		return false, nil
	}

	r.propagatePremiumLevel(ctx, userID, productName, event.ProviderPriceID, status)
	return true, nil
}

// applyPaymentSucceeded refreshes period dates from the provider after
// a renewal charge. A failed hydration is acknowledged and left for
// the drift corrector.
func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, adapter billingdomain.Provider, event *billingdomain.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" {
		return false, nil
	}

	ps, err := adapter.RetrieveSubscription(ctx, event.ProviderSubscriptionID)
	if err != nil {
		r.log.Warn("period refresh failed",
			zap.String("provider_subscription_id", event.ProviderSubscriptionID),
			zap.Error(err),
		)
		return false, nil
	}
	hydrateEvent(event, ps)
	event.Status = ps.Status

	return r.applySubscriptionEvent(ctx, adapter, event)
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, event *billingdomain.Event) (bool, error) {
	if event.ProviderSubscriptionID == "" {
		return false, nil
	}

	if _, err := r.repo.FindByProviderSubscriptionID(ctx, r.db, event.Provider, event.ProviderSubscriptionID); err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
			r.log.Warn("payment failure for unknown subscription",
				zap.String("provider_subscription_id", event.ProviderSubscriptionID))
			return false, nil
		}
		return false, err
	}

	eventTime := r.eventTime(event)
	state := subscriptiondomain.ProviderState{
		Status:    subscriptiondomain.StatusPastDue,
		EventTime: eventTime,
	}
	rows, err := r.repo.ApplyProviderState(ctx, r.db, event.Provider, event.ProviderSubscriptionID, state, r.clock.Now())
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	// Past due keeps the tier; the dunning flow decides the outcome.
	return true, nil
}

// ReconcileWithProviders walks every locally live subscription and
// converges it onto provider truth. Returns how many drifted.
func (r *Reconciler) ReconcileWithProviders(ctx context.Context) (int, error) {
	subs, err := r.repo.ListActiveWithProviderID(ctx, r.db)
	if err != nil {
		return 0, err
	}

	corrected := 0
	for i := range subs {
		sub := &subs[i]
		changed, err := r.reconcileOne(ctx, sub)
		if err != nil {
			r.log.Warn("drift check failed for subscription",
				zap.String("subscription_id", sub.SubscriptionID),
				zap.String("provider", sub.Provider),
				zap.Error(err),
			)
			continue
		}
		if changed {
			corrected++
		}
	}

	r.log.Info("drift check finished",
		zap.Int("checked", len(subs)),
		zap.Int("corrected", corrected),
	)
	return corrected, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, sub *subscriptiondomain.Subscription) (bool, error) {
	adapter, err := r.registry.ForName(sub.Provider)
	if err != nil {
		return false, err
	}

	now := r.clock.Now()
	ps, err := adapter.RetrieveSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		if errors.Is(err, billingdomain.ErrSubscriptionNotFound) {
			// Gone on the provider side: treat as terminated.
			state := subscriptiondomain.ProviderState{
				Status:      subscriptiondomain.StatusCancelled,
				ExpiresAt:   &now,
				CancelledAt: &now,
				EventTime:   now,
			}
			if _, err := r.repo.ApplyProviderState(ctx, r.db, sub.Provider, sub.ProviderSubscriptionID, state, now); err != nil {
				return false, err
			}
			r.propagatePremiumLevel(ctx, sub.UserID, sub.ProductName, sub.ProviderPriceID, subscriptiondomain.StatusCancelled)
			r.log.Warn("subscription vanished at provider, cancelled locally",
				zap.String("subscription_id", sub.SubscriptionID))
			return true, nil
		}
		return false, err
	}

	status := subscriptiondomain.NormalizeStatus(sub.Provider, ps.Status)
	if status == subscriptiondomain.StatusActive && ps.CancelAtPeriodEnd {
		status = subscriptiondomain.StatusCancelledAtPeriodEnd
	}

	state := subscriptiondomain.ProviderState{
		Status:             status,
		CurrentPeriodStart: ps.CurrentPeriodStart,
		CurrentPeriodEnd:   ps.CurrentPeriodEnd,
		EventTime:          now,
	}
	if ps.PriceID != "" {
		state.ProviderPriceID = &ps.PriceID
	}
	// Provider truth includes the plan: a price id that maps to a
	// different product means the plan changed on the provider side, so
	// the row follows.
	if product, err := r.catalog.ByProviderPriceID(ps.PriceID); err == nil && product.Name != sub.ProductName {
		name := product.Name
		state.ProductName = &name
	}
	if status == subscriptiondomain.StatusCancelled || status == subscriptiondomain.StatusExpired {
		state.ExpiresAt = &now
		state.CancelledAt = &now
	}

	if _, err := r.repo.ApplyProviderState(ctx, r.db, sub.Provider, sub.ProviderSubscriptionID, state, now); err != nil {
		return false, err
	}

	statusChanged := status != sub.Status

	// The tier comes from the current price id, not the cached product
	// name. The name is only a fallback for rows predating price ids.
	level := keepPremiumLevel
	switch status {
	case subscriptiondomain.StatusActive:
		if product, err := r.catalog.ByProviderPriceID(ps.PriceID); err == nil {
			level = product.PremiumLevel
		} else if product, err := r.catalog.ByName(sub.ProductName); err == nil {
			level = product.PremiumLevel
		} else {
			r.log.Warn("no product for active subscription, keeping tier",
				zap.String("product", sub.ProductName),
				zap.String("price_id", ps.PriceID),
			)
		}
	case subscriptiondomain.StatusCancelled, subscriptiondomain.StatusExpired:
		level = 0
	}

	tierChanged := false
	if level != keepPremiumLevel {
		if user, err := r.userRepo.FindByID(ctx, r.db, sub.UserID); err == nil {
			tierChanged = user.PremiumLevel != level
		} else {
			tierChanged = statusChanged
		}
	}

	if !statusChanged && !tierChanged {
		return false, nil
	}

	if tierChanged {
		r.setPremiumLevel(ctx, sub.UserID, level)
	}
	if statusChanged {
		r.log.Info("drift corrected",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.String("from", string(sub.Status)),
			zap.String("to", string(status)),
		)
	} else {
		r.log.Info("plan drift corrected",
			zap.String("subscription_id", sub.SubscriptionID),
			zap.String("price_id", ps.PriceID),
			zap.Int("level", level),
		)
	}
	return true, nil
}

// propagatePremiumLevel adjusts the user's tier for a status change.
// Active grants the product's level, termination revokes; every other
// state keeps the current tier.
func (r *Reconciler) propagatePremiumLevel(ctx context.Context, userID, productName, priceID string, status subscriptiondomain.Status) {
	level := r.premiumLevelFor(productName, priceID, status)
	if level == keepPremiumLevel {
		return
	}
	r.setPremiumLevel(ctx, userID, level)
}

func (r *Reconciler) setPremiumLevel(ctx context.Context, userID string, level int) {
	if err := r.userRepo.SetPremiumLevel(ctx, r.db, userID, level, r.clock.Now()); err != nil {
		r.log.Warn("premium level update failed",
			zap.String("user_id", userID),
			zap.Int("level", level),
			zap.Error(err),
		)
		return
	}
	r.log.Info("premium level set",
		zap.String("user_id", userID),
		zap.Int("level", level),
	)
}

func (r *Reconciler) premiumLevelFor(productName, priceID string, status subscriptiondomain.Status) int {
	switch status {
	case subscriptiondomain.StatusActive:
		if product, err := r.catalog.ByName(productName); err == nil {
			return product.PremiumLevel
		}
		if product, err := r.catalog.ByProviderPriceID(priceID); err == nil {
			return product.PremiumLevel
		}
		r.log.Warn("no product for active subscription, keeping tier",
			zap.String("product", productName),
			zap.String("price_id", priceID),
		)
		return keepPremiumLevel
	case subscriptiondomain.StatusCancelled, subscriptiondomain.StatusExpired:
		return 0
	default:
		// past_due, paused and period-end cancellation keep paid access.
		return keepPremiumLevel
	}
}

// statusFor derives the local status from an event, preferring the
// carried provider-native status and falling back to what the event
// type itself implies.
func (r *Reconciler) statusFor(event *billingdomain.Event) subscriptiondomain.Status {
	if event.Status != "" {
		status := subscriptiondomain.NormalizeStatus(event.Provider, event.Status)
		if status == subscriptiondomain.StatusActive && event.CancelAtPeriodEnd {
			return subscriptiondomain.StatusCancelledAtPeriodEnd
		}
		return status
	}

	switch event.Type {
	case billingdomain.EventCheckoutCompleted,
		billingdomain.EventSubscriptionCreated,
		billingdomain.EventSubscriptionResumed,
		billingdomain.EventSubscriptionUnpaused:
		return subscriptiondomain.StatusActive
	case billingdomain.EventSubscriptionCanceled:
		if event.Provider == config.ProviderLemonSqueezy {
			return subscriptiondomain.StatusCancelledAtPeriodEnd
		}
		return subscriptiondomain.StatusCancelled
	case billingdomain.EventSubscriptionExpired:
		return subscriptiondomain.StatusExpired
	case billingdomain.EventSubscriptionPaused:
		return subscriptiondomain.StatusPaused
	default:
		return subscriptiondomain.StatusPending
	}
}

func (r *Reconciler) eventTime(event *billingdomain.Event) time.Time {
	if !event.OccurredAt.IsZero() {
		return event.OccurredAt
	}
	return r.clock.Now()
}

// hydrateEvent fills event fields the webhook payload lacked from the
// provider's API view.
func hydrateEvent(event *billingdomain.Event, ps *billingdomain.ProviderSubscription) {
	if event.Status == "" {
		event.Status = ps.Status
	}
	if event.ProviderPriceID == "" {
		event.ProviderPriceID = ps.PriceID
	}
	if event.ProviderCustomerID == "" {
		event.ProviderCustomerID = ps.CustomerID
	}
	if event.UserID == "" {
		event.UserID = ps.UserID
	}
	if event.ProductName == "" {
		event.ProductName = ps.ProductName
	}
	if event.CurrentPeriodStart == nil {
		event.CurrentPeriodStart = ps.CurrentPeriodStart
	}
	if event.CurrentPeriodEnd == nil {
		event.CurrentPeriodEnd = ps.CurrentPeriodEnd
	}
	if ps.CancelAtPeriodEnd {
		event.CancelAtPeriodEnd = true
	}
}

// stateFromEvent builds the guarded write for an already known
// subscription row.
func stateFromEvent(event *billingdomain.Event, status subscriptiondomain.Status, eventTime time.Time) subscriptiondomain.ProviderState {
	state := subscriptiondomain.ProviderState{
		Status:             status,
		CurrentPeriodStart: event.CurrentPeriodStart,
		CurrentPeriodEnd:   event.CurrentPeriodEnd,
		EventTime:          eventTime,
	}
	if event.ProviderPriceID != "" {
		state.ProviderPriceID = &event.ProviderPriceID
	}
	if status == subscriptiondomain.StatusCancelled || status == subscriptiondomain.StatusExpired {
		state.ExpiresAt = &eventTime
		state.CancelledAt = &eventTime
	}
	return state
}
