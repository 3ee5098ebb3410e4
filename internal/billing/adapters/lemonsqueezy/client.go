package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
)

const defaultBaseURL = "https://api.lemonsqueezy.com/v1"

// Client talks to the Lemon Squeezy JSON:API directly, no SDK.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

type subscriptionAttributes struct {
	Status        string     `json:"status"`
	VariantID     int64      `json:"variant_id"`
	CustomerID    int64      `json:"customer_id"`
	UserEmail     string     `json:"user_email"`
	Cancelled     bool       `json:"cancelled"`
	RenewsAt      *time.Time `json:"renews_at"`
	EndsAt        *time.Time `json:"ends_at"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	TrialEndsAt   *time.Time `json:"trial_ends_at"`
	FirstItemData struct {
		PriceID int64 `json:"price_id"`
	} `json:"first_subscription_item"`
}

type subscriptionDocument struct {
	Data struct {
		ID         string                 `json:"id"`
		Attributes subscriptionAttributes `json:"attributes"`
	} `json:"data"`
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("lemonsqueezy get subscription: status %d", status)
	}

	var doc subscriptionDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("lemonsqueezy get subscription: %w", err)
	}

	attrs := doc.Data.Attributes
	return &domain.ProviderSubscription{
		ID:                 doc.Data.ID,
		Status:             attrs.Status,
		PriceID:            strconv.FormatInt(attrs.VariantID, 10),
		CustomerID:         strconv.FormatInt(attrs.CustomerID, 10),
		CurrentPeriodStart: attrs.CreatedAt,
		CurrentPeriodEnd:   attrs.RenewsAt,
		CancelAtPeriodEnd:  attrs.Cancelled && attrs.Status != "expired",
	}, nil
}

func (c *Client) CreateCheckout(ctx context.Context, req domain.CheckoutRequest, storeID, variantID string) (*domain.CheckoutSession, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "checkouts",
			"attributes": map[string]any{
				"checkout_data": map[string]any{
					"email": req.Email,
					"custom": map[string]any{
						"user_id":      req.UserID,
						"product_name": req.ProductName,
					},
				},
				"product_options": map[string]any{
					"redirect_url": req.SuccessURL,
				},
			},
			"relationships": map[string]any{
				"store": map[string]any{
					"data": map[string]any{"type": "stores", "id": storeID},
				},
				"variant": map[string]any{
					"data": map[string]any{"type": "variants", "id": variantID},
				},
			},
		},
	}

	body, status, err := c.do(ctx, http.MethodPost, "/checkouts", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("lemonsqueezy create checkout: status %d", status)
	}

	var doc struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("lemonsqueezy create checkout: %w", err)
	}
	if doc.Data.ID == "" {
		return nil, fmt.Errorf("lemonsqueezy create checkout: missing checkout id")
	}

	return &domain.CheckoutSession{ID: doc.Data.ID, URL: doc.Data.Attributes.URL}, nil
}

// CancelSubscription always cancels at period end; Lemon Squeezy keeps
// the subscription active until the paid period runs out.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return fmt.Errorf("lemonsqueezy cancel subscription: status %d", status)
	}
	return nil
}

func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	payload := map[string]any{
		"data": map[string]any{
			"type": "subscriptions",
			"id":   subscriptionID,
			"attributes": map[string]any{
				"cancelled": false,
			},
		},
	}

	_, status, err := c.do(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, payload)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return fmt.Errorf("lemonsqueezy resume subscription: status %d", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/vnd.api+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
