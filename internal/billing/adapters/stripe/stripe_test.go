package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
)

func signPayload(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func testAdapter() *Adapter {
	return &Adapter{webhookSecret: "whsec_test"}
}

func TestVerifyWebhook(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)

	header := http.Header{}
	header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=%s", signPayload("whsec_test", "1700000000", payload)))
	assert.NoError(t, adapter.VerifyWebhook(payload, header))

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, adapter.VerifyWebhook(payload, http.Header{}), domain.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		bad := http.Header{}
		bad.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=%s", signPayload("whsec_other", "1700000000", payload)))
		assert.ErrorIs(t, adapter.VerifyWebhook(payload, bad), domain.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := http.Header{}
		header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=%s", signPayload("whsec_test", "1700000000", payload)))
		assert.ErrorIs(t, adapter.VerifyWebhook([]byte(`{"id":"evt_2"}`), header), domain.ErrInvalidSignature)
	})

	t.Run("multiple v1 signatures", func(t *testing.T) {
		header := http.Header{}
		header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=deadbeef,v1=%s", signPayload("whsec_test", "1700000000", payload)))
		assert.NoError(t, adapter.VerifyWebhook(payload, header))
	})

	t.Run("garbage header", func(t *testing.T) {
		header := http.Header{}
		header.Set("Stripe-Signature", "not-a-signature")
		assert.ErrorIs(t, adapter.VerifyWebhook(payload, header), domain.ErrInvalidSignature)
	})
}

func TestParseWebhookSubscriptionUpdated(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"id": "evt_sub_upd",
		"type": "customer.subscription.updated",
		"created": 1700000100,
		"data": {"object": {
			"id": "sub_123",
			"status": "active",
			"customer": "cus_9",
			"cancel_at_period_end": true,
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"metadata": {"user_id": "user_1", "product_name": "premium"},
			"items": {"data": [{"price": {"id": "price_premium"}}]}
		}}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventSubscriptionUpdated, event.Type)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_sub_upd", event.ProviderEventID)
	assert.Equal(t, "sub_123", event.ProviderSubscriptionID)
	assert.Equal(t, "user_1", event.UserID)
	assert.Equal(t, "premium", event.ProductName)
	assert.Equal(t, "price_premium", event.ProviderPriceID)
	assert.Equal(t, "active", event.Status)
	assert.True(t, event.CancelAtPeriodEnd)
	assert.Equal(t, int64(1700000100), event.OccurredAt.Unix())
	if assert.NotNil(t, event.CurrentPeriodEnd) {
		assert.Equal(t, int64(1702592000), event.CurrentPeriodEnd.Unix())
	}
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"id": "evt_checkout",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_9",
			"subscription": "sub_123",
			"customer_details": {"email": "jan@example.com"},
			"metadata": {"user_id": "user_1", "product_name": "gold"}
		}}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventCheckoutCompleted, event.Type)
	assert.Equal(t, "cs_1", event.ProviderCheckoutID)
	assert.Equal(t, "sub_123", event.ProviderSubscriptionID)
	assert.Equal(t, "jan@example.com", event.Email)
	assert.Equal(t, "gold", event.ProductName)
}

func TestParseWebhookAnonymousEvent(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"id": "evt_anon",
		"type": "customer.subscription.deleted",
		"created": 1700000000,
		"data": {"object": {
			"id": "sub_123",
			"status": "canceled",
			"metadata": {}
		}}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventSubscriptionCanceled, event.Type)
	assert.Empty(t, event.UserID)
	assert.Empty(t, event.ProductName)
}

func TestParseWebhookInvoice(t *testing.T) {
	adapter := testAdapter()

	event, err := adapter.ParseWebhook([]byte(`{
		"id": "evt_inv",
		"type": "invoice.payment_failed",
		"created": 1700000000,
		"data": {"object": {"id": "in_1", "subscription": "sub_123"}}
	}`))
	assert.NoError(t, err)
	assert.Equal(t, domain.EventPaymentFailed, event.Type)
	assert.Equal(t, "sub_123", event.ProviderSubscriptionID)

	// One-off invoices carry no subscription and are ignored.
	_, err = adapter.ParseWebhook([]byte(`{
		"id": "evt_inv2",
		"type": "invoice.payment_succeeded",
		"created": 1700000000,
		"data": {"object": {"id": "in_2", "subscription": ""}}
	}`))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestParseWebhookIgnoredAndInvalid(t *testing.T) {
	adapter := testAdapter()

	_, err := adapter.ParseWebhook([]byte(`{"id": "evt_x", "type": "customer.created", "data": {"object": {}}}`))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)

	_, err = adapter.ParseWebhook([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = adapter.ParseWebhook([]byte(`{"type": "customer.subscription.updated"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
