// Package gateway talks to the Razorpay REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/util"
)

const (
	defaultBaseURL       = "https://api.razorpay.com/v1"
	errorBodyReadLimit   = 4096
	RefundSpeedOptimum   = "optimum"
	defaultClientTimeout = 10 * time.Second
)

var errCredentialsRequired = errors.New("razorpay key id and secret are required")

// Order is a gateway payment intent.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrderRequest amounts are in minor units.
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// RefundRequest omits Amount for a full refund.
type RefundRequest struct {
	Amount *int64 `json:"amount,omitempty"`
	Speed  string `json:"speed,omitempty"`
}

// Refund as reported by the gateway. CreatedAt is unix seconds, zero if absent.
type Refund struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	CreatedAt int64  `json:"created_at"`
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: status %d: %s %s", e.StatusCode, e.Code, e.Description)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func NewClient(keyID, keySecret string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, errCredentialsRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultClientTimeout},
		baseURL:    defaultBaseURL,
		keyID:      keyID,
		keySecret:  keySecret,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Secret is the shared secret used to sign payment callbacks.
func (c *Client) Secret() string {
	return c.keySecret
}

// CreateOrder creates a payment intent.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundPayment refunds a captured payment in full or in part.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}
	var out Refund
	path := fmt.Sprintf("/payments/%s/refund", paymentID)
	if err := c.do(ctx, "refund", http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	start := time.Now()
	defer func() {
		util.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
