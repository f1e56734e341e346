package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equitylens/internal/types"
)

// fakeVerifier accepts when err is nil, rejects otherwise.
type fakeVerifier struct {
	err      error
	payloads [][]byte
}

func (f *fakeVerifier) Verify(payload []byte, header string, secret string) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeUpgrader struct {
	err     error
	userIDs []string
	times   []time.Time
}

func (f *fakeUpgrader) UpgradeToPro(_ context.Context, userID string, eventTime time.Time) error {
	f.userIDs = append(f.userIDs, userID)
	f.times = append(f.times, eventTime)
	return f.err
}

func newWebhookRouter(verifier *fakeVerifier, upgrader *fakeUpgrader) *chi.Mux {
	h := NewStripeWebhookHandler(verifier, upgrader, "whsec_test", nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func checkoutCompletedPayload(userID string, created int64) string {
	return fmt.Sprintf(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"created": %d,
		"data": {
			"object": {
				"id": "cs_test_123",
				"metadata": {"userId": %q, "plan": "pro"}
			}
		}
	}`, created, userID)
}

func TestStripeWebhook_CheckoutCompleted_UpgradesUser(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Unix()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(checkoutCompletedPayload("user_1", created)))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"user_1"}, upgrader.userIDs)
	assert.Equal(t, time.Unix(created, 0).UTC(), upgrader.times[0])
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(checkoutCompletedPayload("user_1", time.Now().Unix())))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeWebhookSignatureMissing))
	assert.Empty(t, upgrader.userIDs)
	assert.Empty(t, verifier.payloads)
}

func TestStripeWebhook_InvalidSignature_NoSideEffects(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("signature mismatch")}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(checkoutCompletedPayload("user_1", time.Now().Unix())))
	req.Header.Set("Stripe-Signature", "t=123,v1=forged")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeWebhookSignatureInvalid))
	assert.Empty(t, upgrader.userIDs)
}

func TestStripeWebhook_UnhandledEventType_Acknowledged(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	payload := `{"id":"evt_9","type":"invoice.paid","created":1756000000,"data":{"object":{}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, upgrader.userIDs)
}

func TestStripeWebhook_ProcessingFailure_StillReturns200(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)}
	router := newWebhookRouter(verifier, upgrader)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(checkoutCompletedPayload("user_1", time.Now().Unix())))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The signature was valid; a Stripe retry would not change the outcome.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_1"}, upgrader.userIDs)
}

func TestStripeWebhook_MissingUserID_StillReturns200(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	payload := `{"id":"evt_10","type":"checkout.session.completed","created":1756000000,"data":{"object":{"metadata":{}}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, upgrader.userIDs)
}

func TestStripeWebhook_MalformedJSON(t *testing.T) {
	verifier := &fakeVerifier{}
	upgrader := &fakeUpgrader{}
	router := newWebhookRouter(verifier, upgrader)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{not json`))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeWebhookPayloadInvalid))
}
