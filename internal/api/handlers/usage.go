// Package handlers contains the HTTP handler implementations for the
// EquityLens API. Each handler declares a narrow interface for the services it
// depends on and registers its own routes on the router.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/core"
	"equitylens/internal/types"
)

// UsageReader answers quota questions for a user, creating the subscription
// row and rolling the billing period as side effects.
type UsageReader interface {
	Usage(ctx context.Context, userID string) (*types.UsageSnapshot, error)
}

// UsageHandler serves the frontend's pre-flight quota check.
type UsageHandler struct {
	usage     UsageReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage UsageReader, validator *core.Validator, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{usage: usage, validator: validator, logger: logger}
}

// RegisterRoutes mounts the usage endpoint.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/usage", h.HandleCheckUsage)
}

type checkUsageRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// HandleCheckUsage implements POST /v1/usage. It never rejects on quota:
// an over-limit user simply receives canGenerate=false.
func (h *UsageHandler) HandleCheckUsage(w http.ResponseWriter, r *http.Request) {
	var req checkUsageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.usage.Usage(r.Context(), req.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: snapshot})
}
