// Package stripe implements the payment gateway contract against the Stripe
// Checkout Sessions REST API. Only the two calls the order lifecycle needs
// are covered: session creation and session retrieval.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/chronoshop/orders-api/internal/domain/payment"
)

const defaultBaseURL = "https://api.stripe.com"

var _ payment.Gateway = (*Client)(nil)

// Config holds the client's connection parameters.
type Config struct {
	// SecretKey is the Stripe secret API key.
	SecretKey string
	// BaseURL overrides the Stripe API endpoint. Used by tests and local
	// gateway stubs; empty means the public API.
	BaseURL string
	// HTTPClient overrides the underlying HTTP client. Nil means a client
	// with a 15s timeout; callers still bound individual calls via ctx.
	HTTPClient *http.Client
}

// Client talks to the Stripe Checkout Sessions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient creates a Stripe gateway client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		secretKey:  cfg.SecretKey,
	}
}

// session is the subset of Stripe's checkout session object the adapter
// reads. payment_intent is null until Stripe attaches one, which
// encoding/json leaves as the empty string.
type session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession creates a hosted checkout session for the given
// request and returns the session id, redirect URL, and payment reference.
func (c *Client) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("customer_email", req.CustomerEmail)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("metadata[orderId]", req.OrderID)

	for i, li := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", req.Currency)
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitMinorAmount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(li.Quantity))
	}

	var s session
	if err := c.do(ctx, "create session", http.MethodPost, "/v1/checkout/sessions", form, &s); err != nil {
		return nil, err
	}

	return &payment.CheckoutSession{
		SessionID:   s.ID,
		CheckoutURL: s.URL,
		PaymentRef:  s.PaymentIntent,
	}, nil
}

// RetrieveSession fetches the authoritative state of a checkout session.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*payment.SessionStatus, error) {
	var s session
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "retrieve session", http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}

	return &payment.SessionStatus{
		Paid:       s.PaymentStatus == "paid",
		PaymentRef: s.PaymentIntent,
	}, nil
}

// do performs one API call, decoding a successful response into out and
// mapping any transport or API failure to a payment.UpstreamError.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &payment.UpstreamError{Op: op, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &payment.UpstreamError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &payment.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return &payment.UpstreamError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        errors.Errorf("%s: %s", apiErr.Error.Type, apiErr.Error.Message),
			}
		}
		return &payment.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("unexpected response")}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &payment.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}
