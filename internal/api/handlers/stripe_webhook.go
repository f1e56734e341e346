package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/core"
	"equitylens/internal/external"
	"equitylens/internal/types"
)

// Stripe event payloads are a few KB; anything bigger is not a real webhook.
const maxWebhookBodySize = 64 * 1024

// EntitlementUpgrader applies a verified payment to the user's subscription.
type EntitlementUpgrader interface {
	UpgradeToPro(ctx context.Context, userID string, eventTime time.Time) error
}

// StripeWebhookHandler receives asynchronous events from Stripe. The caller
// is Stripe itself, not a browser, so the only authentication is the
// Stripe-Signature HMAC over the raw body.
type StripeWebhookHandler struct {
	verifier external.WebhookVerifier
	upgrader EntitlementUpgrader
	secret   string
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	upgrader EntitlementUpgrader,
	secret string,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		upgrader: upgrader,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook at the router root, outside /v1, so the
// callback URL registered with Stripe survives API version bumps.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle verifies the Stripe signature over the raw body, then dispatches the
// event. Signature and parse failures get a 400 so Stripe surfaces the
// misconfiguration; once the signature checks out, processing failures are
// logged but still acknowledged with 200 — a Stripe retry of the same event
// would hit the same failure and retry storms help nobody.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	event, err := h.authenticate(r, w)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.dispatch(r.Context(), event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// authenticate reads the body, checks the signature, and parses the event.
// Nothing in the payload is trusted until the signature has been verified.
func (h *StripeWebhookHandler) authenticate(r *http.Request, w http.ResponseWriter) (*stripeWebhookEvent, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		return nil, types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "failed to read request body", err)
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		return nil, types.NewAppError(types.ErrCodeWebhookSignatureMissing, "missing Stripe-Signature header", nil)
	}
	if err := h.verifier.Verify(payload, sig, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		return nil, types.NewAppError(types.ErrCodeWebhookSignatureInvalid, "webhook signature verification failed", err)
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		return nil, types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "invalid webhook event JSON", err)
	}
	return &event, nil
}

// dispatch routes the event by type. Types this service does not act on are
// acknowledged and ignored.
func (h *StripeWebhookHandler) dispatch(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted upgrades the user named in the checkout session
// metadata to the pro plan.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	userID := event.extractUserID()
	if userID == "" {
		return fmt.Errorf("checkout.session.completed: missing userId in event %s", event.ID)
	}

	h.logger.InfoContext(ctx, "processing checkout completed",
		"event_id", event.ID,
		"user_id", userID,
	)

	return h.upgrader.UpgradeToPro(ctx, userID, event.eventTimestamp())
}

// stripeWebhookEvent carries just the fields this handler routes on. Decoding
// into a local struct instead of stripe.Event keeps the handler independent
// of stripe-go's type churn and easy to exercise with hand-written payloads.
type stripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSessionObj struct {
	Metadata map[string]string `json:"metadata"`
}

// eventTimestamp is the event's created time, used as the optimistic-lock
// value for the upgrade upsert.
func (e *stripeWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// extractUserID digs the user ID out of the session metadata, where
// CreateCheckoutSession placed it.
func (e *stripeWebhookEvent) extractUserID() string {
	var data stripeEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	var session stripeCheckoutSessionObj
	if err := json.Unmarshal(data.Object, &session); err != nil {
		return ""
	}
	return session.Metadata["userId"]
}
