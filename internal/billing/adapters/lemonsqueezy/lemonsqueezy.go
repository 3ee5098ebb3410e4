package lemonsqueezy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/config"
)

const providerName = config.ProviderLemonSqueezy

type Adapter struct {
	webhookSecret string
	storeID       string
	client        *Client
	catalog       *config.ProductCatalog
}

func NewAdapter(cfg config.Config, catalog *config.ProductCatalog) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.LemonSqueezy.WebhookSecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}

	return &Adapter{
		webhookSecret: secret,
		storeID:       strings.TrimSpace(cfg.LemonSqueezy.StoreID),
		client:        NewClient(cfg.LemonSqueezy.APIKey),
		catalog:       catalog,
	}, nil
}

func (a *Adapter) Name() string { return providerName }

// VerifyWebhook checks the X-Signature header: a plain hex HMAC-SHA256
// of the raw body.
func (a *Adapter) VerifyWebhook(payload []byte, header http.Header) error {
	signature := strings.TrimSpace(header.Get("X-Signature"))
	if signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type webhookEnvelope struct {
	Meta struct {
		EventName  string            `json:"event_name"`
		CustomData map[string]string `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

type orderAttributes struct {
	Identifier     string     `json:"identifier"`
	UserEmail      string     `json:"user_email"`
	CustomerID     int64      `json:"customer_id"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	FirstOrderItem struct {
		VariantID int64 `json:"variant_id"`
	} `json:"first_order_item"`
}

type paymentAttributes struct {
	SubscriptionID int64      `json:"subscription_id"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

func (a *Adapter) ParseWebhook(payload []byte) (*domain.Event, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	eventName := strings.TrimSpace(envelope.Meta.EventName)
	if eventName == "" || strings.TrimSpace(envelope.Data.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch eventName {
	case "order_created":
		return a.parseOrder(envelope, payload)
	case "subscription_created":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionCreated)
	case "subscription_updated":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionUpdated)
	case "subscription_cancelled":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionCanceled)
	case "subscription_resumed":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionResumed)
	case "subscription_expired":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionExpired)
	case "subscription_paused":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionPaused)
	case "subscription_unpaused":
		return a.parseSubscription(envelope, payload, domain.EventSubscriptionUnpaused)
	case "subscription_payment_success":
		return a.parsePayment(envelope, payload, domain.EventPaymentSucceeded)
	case "subscription_payment_failed":
		return a.parsePayment(envelope, payload, domain.EventPaymentFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

func (a *Adapter) parseOrder(envelope webhookEnvelope, payload []byte) (*domain.Event, error) {
	var attrs orderAttributes
	if err := json.Unmarshal(envelope.Data.Attributes, &attrs); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Event{
		Provider:           providerName,
		ProviderEventID:    "order_" + envelope.Data.ID,
		Type:               domain.EventCheckoutCompleted,
		UserID:             strings.TrimSpace(envelope.Meta.CustomData["user_id"]),
		ProductName:        strings.TrimSpace(envelope.Meta.CustomData["product_name"]),
		Email:              strings.TrimSpace(attrs.UserEmail),
		ProviderCustomerID: formatID(attrs.CustomerID),
		ProviderCheckoutID: attrs.Identifier,
		ProviderPriceID:    formatID(attrs.FirstOrderItem.VariantID),
		OccurredAt:         occurredAt(attrs.UpdatedAt, attrs.CreatedAt),
		RawPayload:         payload,
	}, nil
}

func (a *Adapter) parseSubscription(envelope webhookEnvelope, payload []byte, eventType domain.EventType) (*domain.Event, error) {
	var attrs subscriptionAttributes
	if err := json.Unmarshal(envelope.Data.Attributes, &attrs); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.Event{
		Provider:               providerName,
		ProviderEventID:        string(eventType) + "_" + envelope.Data.ID,
		Type:                   eventType,
		UserID:                 strings.TrimSpace(envelope.Meta.CustomData["user_id"]),
		ProductName:            strings.TrimSpace(envelope.Meta.CustomData["product_name"]),
		Email:                  strings.TrimSpace(attrs.UserEmail),
		ProviderSubscriptionID: envelope.Data.ID,
		ProviderCustomerID:     formatID(attrs.CustomerID),
		ProviderPriceID:        formatID(attrs.VariantID),
		Status:                 attrs.Status,
		CurrentPeriodStart:     attrs.CreatedAt,
		CurrentPeriodEnd:       attrs.RenewsAt,
		CancelAtPeriodEnd:      attrs.Cancelled && attrs.Status != "expired",
		OccurredAt:             occurredAt(attrs.UpdatedAt, attrs.CreatedAt),
		RawPayload:             payload,
	}, nil
}

func (a *Adapter) parsePayment(envelope webhookEnvelope, payload []byte, eventType domain.EventType) (*domain.Event, error) {
	var attrs paymentAttributes
	if err := json.Unmarshal(envelope.Data.Attributes, &attrs); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if attrs.SubscriptionID == 0 {
		return nil, domain.ErrInvalidEvent
	}

	return &domain.Event{
		Provider:               providerName,
		ProviderEventID:        string(eventType) + "_" + envelope.Data.ID,
		Type:                   eventType,
		ProviderSubscriptionID: formatID(attrs.SubscriptionID),
		OccurredAt:             occurredAt(attrs.UpdatedAt, attrs.CreatedAt),
		RawPayload:             payload,
	}, nil
}

func (a *Adapter) RetrieveSubscription(ctx context.Context, providerSubscriptionID string) (*domain.ProviderSubscription, error) {
	return a.client.GetSubscription(ctx, providerSubscriptionID)
}

func (a *Adapter) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	product, err := a.catalog.ByName(req.ProductName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(product.LemonSqueezyVariantID) == "" || a.storeID == "" {
		return nil, domain.ErrInvalidConfig
	}
	return a.client.CreateCheckout(ctx, req, a.storeID, product.LemonSqueezyVariantID)
}

func (a *Adapter) CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error {
	// Lemon Squeezy only supports period-end cancellation.
	return a.client.CancelSubscription(ctx, providerSubscriptionID)
}

func (a *Adapter) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return a.client.ResumeSubscription(ctx, providerSubscriptionID)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func occurredAt(primary, fallback *time.Time) time.Time {
	if primary != nil {
		return primary.UTC()
	}
	if fallback != nil {
		return fallback.UTC()
	}
	return time.Now().UTC()
}
