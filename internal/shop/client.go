// Package shop is the read-back client for the commerce platform's admin
// API. The core uses it to answer business checks ("has this checkout
// converted?") and to resolve recipients for scheduled sends.
package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Contact is the reachable recipient for an order, if any.
type Contact struct {
	Phone     string
	FirstName string
	Locale    string
}

// Client answers business checks against the platform.
type Client interface {
	// CheckoutConverted reports whether the checkout has completed into an
	// order.
	CheckoutConverted(ctx context.Context, checkoutToken string) (bool, error)
	// OrderContact resolves the notification recipient for an order. A nil
	// error with an empty Phone means the order has no reachable contact.
	OrderContact(ctx context.Context, orderID string) (Contact, error)
}

// HTTPClient implements Client over the platform admin API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewHTTPClient returns a client for the admin API at baseURL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) CheckoutConverted(ctx context.Context, checkoutToken string) (bool, error) {
	var body struct {
		Checkout struct {
			CompletedAt *string `json:"completed_at"`
		} `json:"checkout"`
	}
	if err := c.get(ctx, "/admin/checkouts/"+checkoutToken+".json", &body); err != nil {
		return false, err
	}
	return body.Checkout.CompletedAt != nil && *body.Checkout.CompletedAt != "", nil
}

func (c *HTTPClient) OrderContact(ctx context.Context, orderID string) (Contact, error) {
	var body struct {
		Order struct {
			Phone    string `json:"phone"`
			Customer struct {
				Phone     string `json:"phone"`
				FirstName string `json:"first_name"`
				Locale    string `json:"locale"`
			} `json:"customer"`
		} `json:"order"`
	}
	if err := c.get(ctx, "/admin/orders/"+orderID+".json", &body); err != nil {
		return Contact{}, err
	}
	phone := body.Order.Phone
	if phone == "" {
		phone = body.Order.Customer.Phone
	}
	return Contact{
		Phone:     phone,
		FirstName: body.Order.Customer.FirstName,
		Locale:    body.Order.Customer.Locale,
	}, nil
}
