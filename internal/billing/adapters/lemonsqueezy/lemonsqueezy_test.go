package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
)

func testAdapter() *Adapter {
	return &Adapter{webhookSecret: "ls_secret"}
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{"meta":{"event_name":"subscription_updated"}}`)

	header := http.Header{}
	header.Set("X-Signature", sign("ls_secret", payload))
	assert.NoError(t, adapter.VerifyWebhook(payload, header))

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, adapter.VerifyWebhook(payload, http.Header{}), domain.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		bad := http.Header{}
		bad.Set("X-Signature", sign("other", payload))
		assert.ErrorIs(t, adapter.VerifyWebhook(payload, bad), domain.ErrInvalidSignature)
	})
}

func TestParseWebhookSubscription(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"meta": {
			"event_name": "subscription_created",
			"custom_data": {"user_id": "user_1", "product_name": "premium"}
		},
		"data": {
			"id": "42",
			"attributes": {
				"status": "active",
				"variant_id": 777,
				"customer_id": 55,
				"user_email": "jan@example.com",
				"cancelled": false,
				"renews_at": "2026-04-01T00:00:00Z",
				"created_at": "2026-03-01T00:00:00Z",
				"updated_at": "2026-03-01T10:00:00Z"
			}
		}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventSubscriptionCreated, event.Type)
	assert.Equal(t, "lemonsqueezy", event.Provider)
	assert.Equal(t, "42", event.ProviderSubscriptionID)
	assert.Equal(t, "user_1", event.UserID)
	assert.Equal(t, "premium", event.ProductName)
	assert.Equal(t, "777", event.ProviderPriceID)
	assert.Equal(t, "55", event.ProviderCustomerID)
	assert.Equal(t, "active", event.Status)
	assert.False(t, event.CancelAtPeriodEnd)
	if assert.NotNil(t, event.CurrentPeriodEnd) {
		assert.Equal(t, "2026-04-01", event.CurrentPeriodEnd.Format("2006-01-02"))
	}
	assert.Equal(t, 10, event.OccurredAt.Hour())
}

func TestParseWebhookCancelledKeepsPeriodEndFlag(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"meta": {"event_name": "subscription_cancelled"},
		"data": {
			"id": "42",
			"attributes": {
				"status": "cancelled",
				"cancelled": true,
				"updated_at": "2026-03-05T00:00:00Z"
			}
		}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventSubscriptionCanceled, event.Type)
	assert.True(t, event.CancelAtPeriodEnd)
	assert.Empty(t, event.UserID)
}

func TestParseWebhookOrderCreated(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"meta": {
			"event_name": "order_created",
			"custom_data": {"user_id": "user_1", "product_name": "gold"}
		},
		"data": {
			"id": "900",
			"attributes": {
				"identifier": "chk_abc",
				"user_email": "jan@example.com",
				"customer_id": 55,
				"created_at": "2026-03-01T00:00:00Z",
				"first_order_item": {"variant_id": 888}
			}
		}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventCheckoutCompleted, event.Type)
	assert.Equal(t, "chk_abc", event.ProviderCheckoutID)
	assert.Equal(t, "888", event.ProviderPriceID)
	assert.Equal(t, "gold", event.ProductName)
	assert.Empty(t, event.ProviderSubscriptionID)
}

func TestParseWebhookPayment(t *testing.T) {
	adapter := testAdapter()
	payload := []byte(`{
		"meta": {"event_name": "subscription_payment_success"},
		"data": {
			"id": "inv_1",
			"attributes": {
				"subscription_id": 42,
				"created_at": "2026-03-01T00:00:00Z"
			}
		}
	}`)

	event, err := adapter.ParseWebhook(payload)
	assert.NoError(t, err)
	assert.Equal(t, domain.EventPaymentSucceeded, event.Type)
	assert.Equal(t, "42", event.ProviderSubscriptionID)
}

func TestParseWebhookIgnoredAndInvalid(t *testing.T) {
	adapter := testAdapter()

	_, err := adapter.ParseWebhook([]byte(`{"meta":{"event_name":"license_key_created"},"data":{"id":"1"}}`))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)

	_, err = adapter.ParseWebhook([]byte(`nope`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = adapter.ParseWebhook([]byte(`{"meta":{"event_name":""},"data":{"id":"1"}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
