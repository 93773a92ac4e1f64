// Package stripe is a minimal PaymentIntents client for the purchase flow.
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

	"github.com/google/uuid"

	"github.com/medjobs/leadmarket/internal/entity"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: status %d: %s (%s)", e.StatusCode, e.Message, e.Type)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateIntent opens a PaymentIntent for amount (minor units). Metadata keys
// are sent as metadata[key] so the intent can be traced back to the purchase.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*entity.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	// A fresh key per call; the HTTP client itself does not retry.
	return c.do(ctx, http.MethodPost, "/v1/payment_intents", form, uuid.NewString())
}

func (c *Client) GetIntent(ctx context.Context, id string) (*entity.PaymentIntent, error) {
	return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, "")
}

func (c *Client) CancelIntent(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id)+"/cancel", url.Values{}, "")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string) (*entity.PaymentIntent, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, form != nil)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
			apiErr.Type = parsed.Error.Type
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}

	var pi paymentIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &entity.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       pi.Status,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
	}, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "LeadMarket/1.0")
	if hasBody {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
}
