package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/core"
	"equitylens/internal/types"
)

// CompanyFinder answers company search and lookup queries.
type CompanyFinder interface {
	Search(ctx context.Context, query string) ([]*types.Company, error)
	GetByTicker(ctx context.Context, ticker string) (*types.Company, error)
}

// CompaniesHandler serves the company search box.
type CompaniesHandler struct {
	companies CompanyFinder
	logger    *slog.Logger
}

// NewCompaniesHandler creates a new CompaniesHandler.
func NewCompaniesHandler(companies CompanyFinder, logger *slog.Logger) *CompaniesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompaniesHandler{companies: companies, logger: logger}
}

// RegisterRoutes mounts the company endpoints.
func (h *CompaniesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/companies", h.HandleSearch)
	r.Get("/companies/{ticker}", h.HandleGetByTicker)
}

// HandleSearch implements GET /v1/companies?q=. An empty query returns an
// empty list rather than an error so the search box can call it on every
// keystroke.
func (h *CompaniesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	companies, err := h.companies.Search(r.Context(), query)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: companies})
}

// HandleGetByTicker implements GET /v1/companies/{ticker}.
func (h *CompaniesHandler) HandleGetByTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	company, err := h.companies.GetByTicker(r.Context(), ticker)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: company})
}
