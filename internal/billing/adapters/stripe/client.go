package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janmager/myfreelance-backend/internal/billing/domain"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// Client talks to the Stripe REST API directly, no SDK.
type Client struct {
	secretKey  string
	httpClient *http.Client
	baseURL    string
}

func NewClient(secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

type subscriptionResponse struct {
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

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("stripe get subscription: status %d", status)
	}

	var sub subscriptionResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}

	priceID := ""
	if len(sub.Items.Data) > 0 {
		priceID = sub.Items.Data[0].Price.ID
	}

	return &domain.ProviderSubscription{
		ID:                 sub.ID,
		Status:             sub.Status,
		PriceID:            priceID,
		CustomerID:         sub.Customer,
		UserID:             sub.Metadata["user_id"],
		ProductName:        sub.Metadata["product_name"],
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest, priceID string) (*domain.CheckoutSession, error) {
	data := url.Values{}
	data.Set("mode", "subscription")
	data.Set("customer_email", req.Email)
	data.Set("line_items[0][price]", priceID)
	data.Set("line_items[0][quantity]", "1")
	data.Set("success_url", req.SuccessURL)
	data.Set("cancel_url", req.CancelURL)
	data.Set("metadata[user_id]", req.UserID)
	data.Set("metadata[product_name]", req.ProductName)
	data.Set("subscription_data[metadata][user_id]", req.UserID)
	data.Set("subscription_data[metadata][product_name]", req.ProductName)

	body, status, err := c.do(ctx, http.MethodPost, "/checkout/sessions", data)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("stripe create checkout: status %d", status)
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("stripe create checkout: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("stripe create checkout: missing session id")
	}

	return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		data := url.Values{}
		data.Set("cancel_at_period_end", "true")
		_, status, err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, data)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			return domain.ErrSubscriptionNotFound
		}
		if status >= 400 {
			return fmt.Errorf("stripe cancel subscription: status %d", status)
		}
		return nil
	}

	_, status, err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return fmt.Errorf("stripe cancel subscription: status %d", status)
	}
	return nil
}

func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	data := url.Values{}
	data.Set("cancel_at_period_end", "false")
	_, status, err := c.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, data)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return domain.ErrSubscriptionNotFound
	}
	if status >= 400 {
		return fmt.Errorf("stripe resume subscription: status %d", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, data url.Values) ([]byte, int, error) {
	var reqBody io.Reader
	if data != nil {
		reqBody = strings.NewReader(data.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.SetBasicAuth(c.secretKey, "")
	if data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
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

func unixTime(value int64) *time.Time {
	if value == 0 {
		return nil
	}
	t := time.Unix(value, 0).UTC()
	return &t
}
