// Package commerce is the REST client for the external commerce API, which
// owns all durable storefront state: carts, orders, pricing, and payment
// capture records.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/unisouk/storefront-checkout/internal/domain/checkout"
)

// ErrCartNotFound indicates the requested cart does not exist upstream.
var ErrCartNotFound = errors.New("cart not found")

const maxResponseBytes = 1 << 20

// Config holds the commerce API connection settings.
type Config struct {
	// BaseURL is the root of the commerce API, e.g. https://dev-sfapi.example.com.
	BaseURL string
	// Token is the static bearer token presented on every request. Token
	// refresh is owned by the upstream auth layer, not this client.
	Token string
	// StoreID scopes requests to one storefront.
	StoreID string
	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration
}

// Client talks to the commerce API. Outbound requests are traced via
// otelhttp and guarded by a circuit breaker so a dead upstream fails fast
// instead of tying up checkout submissions.
type Client struct {
	baseURL string
	token   string
	storeID string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

var _ checkout.OrderSubmitter = (*Client)(nil)

// NewClient creates a commerce API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "commerce-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		storeID: cfg.StoreID,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

// envelope mirrors the commerce API's response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// orderData is the order-creation payload inside the envelope. Which
// identifier is populated depends on the payment method.
type orderData struct {
	ID              string `json:"id"`
	RazorpayOrderID string `json:"razorpayOrderId"`
}

// CreateOrder posts the assembled order payload. The idempotency key is sent
// as an Idempotency-Key header so upstream retries of the same checkout do
// not create duplicate orders. Non-2xx responses surface the server's
// message through checkout.SubmissionError.
func (c *Client) CreateOrder(ctx context.Context, payload checkout.OrderPayload, idempotencyKey string) (*checkout.OrderResult, error) {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	status, env, err := c.do(ctx, http.MethodPost, "/order", payload, headers)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if status < 200 || status >= 300 {
		return nil, &checkout.SubmissionError{Status: status, Message: env.Message}
	}

	var data orderData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, errors.Wrap(err, "decode order data")
		}
	}
	return &checkout.OrderResult{
		OrderID:        data.ID,
		GatewayOrderID: data.RazorpayOrderID,
	}, nil
}

// cart DTOs, matching the commerce API's cart representation.
type cartData struct {
	ID          string          `json:"id"`
	Items       []cartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type cartItem struct {
	VariantID string          `json:"variantId"`
	Title     string          `json:"title"`
	BrandName string          `json:"brandName"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Images    []cartImage     `json:"images"`
}

type cartImage struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// GetCart fetches the persisted cart and converts it to the read-only
// snapshot checkout works from.
func (c *Client) GetCart(ctx context.Context, cartID string) (*checkout.CartSnapshot, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/cart/"+url.PathEscape(cartID), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrCartNotFound
	case status < 200 || status >= 300:
		return nil, errors.Errorf("commerce api: get cart: status %d: %s", status, env.Message)
	}

	var data cartData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Wrap(err, "decode cart data")
	}

	items := make([]checkout.LineItem, len(data.Items))
	for i, it := range data.Items {
		images := make([]string, 0, len(it.Images))
		for _, img := range it.Images {
			images = append(images, img.URL)
		}
		items[i] = checkout.LineItem{
			VariantID: it.VariantID,
			Title:     it.Title,
			BrandName: it.BrandName,
			SKU:       it.SKU,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			Images:    images,
		}
	}
	return &checkout.CartSnapshot{
		CartID:      data.ID,
		Items:       items,
		TotalAmount: data.TotalAmount,
	}, nil
}

// do executes one request and decodes the response envelope. The circuit
// breaker wraps only the transport; HTTP status handling stays with the
// caller so a burst of 4xx responses cannot trip the breaker open.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (int, envelope, error) {
	var env envelope

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, env, errors.Wrap(err, "encode body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, env, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.storeID != "" {
		req.Header.Set("X-Store-Id", c.storeID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return 0, env, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, env, errors.Wrap(err, "read body")
	}
	if len(raw) > 0 {
		// A non-JSON error page is tolerated; the status code still tells
		// the caller what happened.
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env, nil
}
