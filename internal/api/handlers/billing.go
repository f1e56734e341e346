package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/core"
	"equitylens/internal/external"
)

// CheckoutCreator starts the payment provider's hosted checkout flow.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, userID, userEmail string) (*external.CheckoutSession, error)
}

// BillingHandler serves the upgrade-to-pro checkout endpoint.
type BillingHandler struct {
	checkout  CheckoutCreator
	validator *core.Validator
	logger    *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(checkout CheckoutCreator, validator *core.Validator, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{checkout: checkout, validator: validator, logger: logger}
}

// RegisterRoutes mounts the billing endpoints.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout-session", h.HandleCreateCheckoutSession)
}

type createCheckoutRequest struct {
	UserID    string `json:"userId" validate:"required"`
	UserEmail string `json:"userEmail" validate:"required,email"`
}

type createCheckoutResponse struct {
	SessionURL string `json:"sessionUrl"`
	SessionID  string `json:"sessionId"`
}

// HandleCreateCheckoutSession implements POST /v1/billing/checkout-session.
// The entitlement is not granted here; it arrives asynchronously via the
// payment provider's webhook after the user completes payment.
func (h *BillingHandler) HandleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), req.UserID, req.UserEmail)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: createCheckoutResponse{
		SessionURL: session.URL,
		SessionID:  session.ID,
	}})
}
