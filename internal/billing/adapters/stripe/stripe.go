package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
	"github.com/janmager/myfreelance-backend/internal/config"
)

const providerName = config.ProviderStripe

type Adapter struct {
	webhookSecret string
	client        *Client
	catalog       *config.ProductCatalog
}

func NewAdapter(cfg config.Config, catalog *config.ProductCatalog) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.Stripe.WebhookSecret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}

	return &Adapter{
		webhookSecret: secret,
		client:        NewClient(cfg.Stripe.SecretKey),
		catalog:       catalog,
	}, nil
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) VerifyWebhook(payload []byte, header http.Header) error {
	sigHeader := strings.TrimSpace(header.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
	Details       struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Customer           string            `json:"customer"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoice struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

func (a *Adapter) ParseWebhook(payload []byte) (*domain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event, payload)
	case "customer.subscription.created":
		return a.parseSubscription(event, payload, domain.EventSubscriptionCreated)
	case "customer.subscription.updated":
		return a.parseSubscription(event, payload, domain.EventSubscriptionUpdated)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, payload, domain.EventSubscriptionCanceled)
	case "invoice.payment_succeeded":
		return a.parseInvoice(event, payload, domain.EventPaymentSucceeded)
	case "invoice.payment_failed":
		return a.parseInvoice(event, payload, domain.EventPaymentFailed)
	default:
		return nil, domain.ErrEventIgnored
	}
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte) (*domain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	email := strings.TrimSpace(session.Details.Email)
	if email == "" {
		email = strings.TrimSpace(session.CustomerEmail)
	}

	return &domain.Event{
		Provider:               providerName,
		ProviderEventID:        event.ID,
		Type:                   domain.EventCheckoutCompleted,
		UserID:                 strings.TrimSpace(session.Metadata["user_id"]),
		ProductName:            strings.TrimSpace(session.Metadata["product_name"]),
		Email:                  email,
		ProviderSubscriptionID: session.Subscription,
		ProviderCustomerID:     session.Customer,
		ProviderCheckoutID:     session.ID,
		OccurredAt:             eventTime(event.Created),
		RawPayload:             payload,
	}, nil
}

func (a *Adapter) parseSubscription(event stripeEvent, payload []byte, eventType domain.EventType) (*domain.Event, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	priceID := ""
	if len(sub.Items.Data) > 0 {
		priceID = sub.Items.Data[0].Price.ID
	}

	return &domain.Event{
		Provider:               providerName,
		ProviderEventID:        event.ID,
		Type:                   eventType,
		UserID:                 strings.TrimSpace(sub.Metadata["user_id"]),
		ProductName:            strings.TrimSpace(sub.Metadata["product_name"]),
		ProviderSubscriptionID: sub.ID,
		ProviderCustomerID:     sub.Customer,
		ProviderPriceID:        priceID,
		Status:                 sub.Status,
		CurrentPeriodStart:     unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:       unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		OccurredAt:             eventTime(event.Created),
		RawPayload:             payload,
	}, nil
}

func (a *Adapter) parseInvoice(event stripeEvent, payload []byte, eventType domain.EventType) (*domain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}
	// Invoices without a subscription are one-off payments; nothing to
	// reconcile.
	if strings.TrimSpace(invoice.Subscription) == "" {
		return nil, domain.ErrEventIgnored
	}

	return &domain.Event{
		Provider:               providerName,
		ProviderEventID:        event.ID,
		Type:                   eventType,
		ProviderSubscriptionID: invoice.Subscription,
		OccurredAt:             eventTime(event.Created),
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
	if strings.TrimSpace(product.StripePriceID) == "" {
		return nil, domain.ErrInvalidConfig
	}
	return a.client.CreateCheckoutSession(ctx, req, product.StripePriceID)
}

func (a *Adapter) CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error {
	return a.client.CancelSubscription(ctx, providerSubscriptionID, atPeriodEnd)
}

func (a *Adapter) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return a.client.ResumeSubscription(ctx, providerSubscriptionID)
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func eventTime(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}
