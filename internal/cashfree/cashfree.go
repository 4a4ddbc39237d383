// Package cashfree is a minimal client for the payment processor's
// subscriptions REST API, covering only the calls the billing service needs:
// plan lookup/creation, customer creation, and subscription creation.
package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	sandboxBaseURL    = "https://sandbox.cashfree.com/pg"
	productionBaseURL = "https://api.cashfree.com/pg"

	defaultAPIVersion = "2025-01-01"
	defaultTimeout    = 15 * time.Second
)

// ErrTimeout is returned when a gateway call exceeds its deadline. Callers
// treat it as a distinct failure from an API-level rejection.
var ErrTimeout = errors.New("gateway timeout")

// APIError is a non-2xx response from the processor.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cashfree: status %d code %q: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is the processor's not-found response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsDuplicate reports whether err is the processor rejecting a create call
// because the resource already exists. Racing creators hit this.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict || apiErr.Code == "duplicate_request"
}

type Config struct {
	ClientID     string
	ClientSecret string
	APIVersion   string
	// Production selects the live base URL; everything else is sandbox.
	Production bool
	// BaseURL overrides environment selection, for tests.
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if cfg.Production {
			baseURL = productionBaseURL
		}
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlanSpec is the fixed descriptor for a recurring plan.
type PlanSpec struct {
	ID           string
	Name         string
	Amount       int64
	Currency     string
	IntervalType string
	Intervals    int
	Description  string
}

// CustomerDetails identifies the subscriber to the processor. Name and phone
// are display fields only; the processor requires a phone, so callers pass a
// placeholder when the user has none.
type CustomerDetails struct {
	ID    string `json:"customer_id"`
	Email string `json:"customer_email"`
	Name  string `json:"customer_name"`
	Phone string `json:"customer_phone"`
}

// SubscriptionRequest carries everything the processor needs to open a
// hosted checkout for a recurring subscription.
type SubscriptionRequest struct {
	SubscriptionID string
	PlanID         string
	Customer       CustomerDetails
	ReturnURL      string
	Note           string
}

// SubscriptionResult is the processor's handle pair: the subscription ref the
// webhooks will carry, and the session id the client uses to open checkout.
type SubscriptionResult struct {
	SubscriptionRef string `json:"subscription_id"`
	SessionID       string `json:"subscription_session_id"`
}

type planPayload struct {
	PlanID          string `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	PlanType        string `json:"plan_type"`
	PlanCurrency    string `json:"plan_currency"`
	RecurringAmount int64  `json:"plan_recurring_amount"`
	MaxAmount       int64  `json:"plan_max_amount"`
	Intervals       int    `json:"plan_intervals"`
	IntervalType    string `json:"plan_interval_type"`
	Note            string `json:"plan_note,omitempty"`
}

type subscriptionPayload struct {
	SubscriptionID string          `json:"subscription_id"`
	PlanID         string          `json:"plan_id"`
	Customer       CustomerDetails `json:"customer_details"`
	ReturnURL      string          `json:"return_url"`
	Note           string          `json:"subscription_note,omitempty"`
}

type customerResponse struct {
	CustomerRef string `json:"customer_id"`
}

// EnsurePlan makes sure the plan exists on the processor, creating it when
// the lookup reports not-found. A duplicate-creation rejection from a racing
// caller is swallowed; the plan exists either way.
func (c *Client) EnsurePlan(ctx context.Context, plan PlanSpec) error {
	err := c.do(ctx, http.MethodGet, "/plans/"+plan.ID, nil, nil)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("look up plan %s: %w", plan.ID, err)
	}

	payload := planPayload{
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		PlanType:        "PERIODIC",
		PlanCurrency:    plan.Currency,
		RecurringAmount: plan.Amount,
		MaxAmount:       plan.Amount,
		Intervals:       plan.Intervals,
		IntervalType:    plan.IntervalType,
		Note:            plan.Description,
	}
	if err := c.do(ctx, http.MethodPost, "/plans", payload, nil); err != nil {
		if IsDuplicate(err) {
			return nil
		}
		return fmt.Errorf("create plan %s: %w", plan.ID, err)
	}
	return nil
}

// CreateCustomer registers the subscriber with the processor and returns the
// processor-side customer reference.
func (c *Client) CreateCustomer(ctx context.Context, details CustomerDetails) (string, error) {
	var resp customerResponse
	if err := c.do(ctx, http.MethodPost, "/customers", details, &resp); err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	if resp.CustomerRef == "" {
		return "", fmt.Errorf("create customer: empty customer_id in response")
	}
	return resp.CustomerRef, nil
}

// CreateSubscription opens a subscription on the processor and returns the
// checkout handle.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (SubscriptionResult, error) {
	payload := subscriptionPayload{
		SubscriptionID: req.SubscriptionID,
		PlanID:         req.PlanID,
		Customer:       req.Customer,
		ReturnURL:      req.ReturnURL,
		Note:           req.Note,
	}
	var resp SubscriptionResult
	if err := c.do(ctx, http.MethodPost, "/subscriptions", payload, &resp); err != nil {
		return SubscriptionResult{}, fmt.Errorf("create subscription: %w", err)
	}
	if resp.SubscriptionRef == "" {
		return SubscriptionResult{}, fmt.Errorf("create subscription: empty subscription_id in response")
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.cfg.ClientID)
	req.Header.Set("x-client-secret", c.cfg.ClientSecret)
	req.Header.Set("x-api-version", c.cfg.APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Best effort: the error body may not be JSON.
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
