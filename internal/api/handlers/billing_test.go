package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equitylens/internal/core"
	"equitylens/internal/external"
	"equitylens/internal/types"
)

type fakeCheckoutCreator struct {
	session *external.CheckoutSession
	err     error
	userIDs []string
	emails  []string
}

func (f *fakeCheckoutCreator) CreateCheckoutSession(_ context.Context, userID, userEmail string) (*external.CheckoutSession, error) {
	f.userIDs = append(f.userIDs, userID)
	f.emails = append(f.emails, userEmail)
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func newBillingRouter(checkout CheckoutCreator) *chi.Mux {
	h := NewBillingHandler(checkout, core.NewValidator(), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestBillingHandler_CreateCheckoutSession_Success(t *testing.T) {
	checkout := &fakeCheckoutCreator{session: &external.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.stripe.com/c/pay/cs_test_123",
	}}
	router := newBillingRouter(checkout)

	body := `{"userId":"user_1","userEmail":"user@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout-session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_1"}, checkout.userIDs)
	assert.Equal(t, []string{"user@example.com"}, checkout.emails)

	var resp struct {
		Data struct {
			SessionURL string `json:"sessionUrl"`
			SessionID  string `json:"sessionId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", resp.Data.SessionURL)
	assert.Equal(t, "cs_test_123", resp.Data.SessionID)
}

func TestBillingHandler_CreateCheckoutSession_MissingEmail(t *testing.T) {
	checkout := &fakeCheckoutCreator{}
	router := newBillingRouter(checkout)

	req := httptest.NewRequest(http.MethodPost, "/billing/checkout-session",
		strings.NewReader(`{"userId":"user_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, checkout.userIDs)
}

func TestBillingHandler_CreateCheckoutSession_InvalidEmail(t *testing.T) {
	checkout := &fakeCheckoutCreator{}
	router := newBillingRouter(checkout)

	body := `{"userId":"user_1","userEmail":"not-an-email"}`
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout-session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, checkout.userIDs)
}

func TestBillingHandler_CreateCheckoutSession_StripeDown(t *testing.T) {
	checkout := &fakeCheckoutCreator{err: types.NewAppError(
		types.ErrCodeUpstreamStripe, "Stripe server error", nil,
	)}
	router := newBillingRouter(checkout)

	body := `{"userId":"user_1","userEmail":"user@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout-session", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeUpstreamStripe))
}
