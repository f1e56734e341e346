package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"equitylens/internal/config"
	"equitylens/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// checkoutRedirectPaths are appended to the dashboard URL so the frontend can
// show the payment outcome after Stripe redirects back.
const (
	checkoutSuccessPath = "/dashboard?payment=success"
	checkoutCancelPath  = "/dashboard?payment=cancelled"
)

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	Billing      config.BillingConfig
	DashboardURL string
	BaseURL      string // Override for testing; defaults to stripeAPIBase
	Logger       *slog.Logger
}

// StripeClient creates checkout sessions by calling the Stripe REST API
// directly through BaseClient. This routes all requests through the platform's
// resilience infrastructure (circuit breaker, error mapping) and makes
// testing with httptest straightforward.
type StripeClient struct {
	base         *BaseClient
	billing      config.BillingConfig
	dashboardURL string
	baseURL      string
	logger       *slog.Logger
}

// NewStripeClient creates a new StripeClient.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig, opts ...BaseClientOption) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Session creation is a non-idempotent POST: re-sending after an
	// ambiguous 5xx could mint duplicate checkout sessions, so the call is
	// made exactly once and failures surface to the user to retry the click.
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 0,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"EquityLens/1.0",
		opts...,
	)

	return &StripeClient{
		base:         base,
		billing:      cfg.Billing,
		dashboardURL: strings.TrimSuffix(cfg.DashboardURL, "/"),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		logger:       logger,
	}
}

// CheckoutSession is the subset of the Stripe checkout session the platform
// uses: the hosted payment page URL and the session ID.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession creates a subscription-mode checkout session for the
// pro plan. The price is defined inline (price_data) from billing config; the
// user identity travels in session metadata so the completion webhook can
// resolve which subscription to upgrade.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, userID, userEmail string) (*CheckoutSession, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("payment_method_types[0]", "card")
	params.Set("line_items[0][price_data][currency]", s.billing.Currency)
	params.Set("line_items[0][price_data][product_data][name]", s.billing.ProductName)
	params.Set("line_items[0][price_data][product_data][description]", "Monthly subscription with unlimited reports")
	params.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(s.billing.UnitAmountCents))
	params.Set("line_items[0][price_data][recurring][interval]", "month")
	params.Set("line_items[0][quantity]", "1")
	params.Set("success_url", s.dashboardURL+checkoutSuccessPath)
	params.Set("cancel_url", s.dashboardURL+checkoutCancelPath)
	params.Set("customer_email", userEmail)
	params.Set("metadata[userId]", userID)
	params.Set("metadata[plan]", string(types.PlanPro))

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return &session, nil
}

// doPost performs an authenticated POST request to the Stripe API with a
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.billing.StripeSecretKey.Reveal())
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	return s.base.Do(req)
}

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// handleErrorResponse turns a non-200 Stripe reply into an AppError, keeping
// Stripe's own message when the body parses.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode), readErr)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode), jsonErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation), nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message), nil)
}

// wrapStripeError preserves transport-level AppErrors (breaker open, retries
// exhausted) and tags anything else as a Stripe failure.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err), err)
}

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification: HMAC-SHA256 signature checking with timestamp
// tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header and
// signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}
