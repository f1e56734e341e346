package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/core"
	"equitylens/internal/reports"
	"equitylens/internal/types"
)

// ReportGenerator runs the full generation flow: quota gate, model call,
// persistence.
type ReportGenerator interface {
	Generate(ctx context.Context, userID, companyName, ticker string) (*reports.Result, error)
	GetByID(ctx context.Context, reportID string) (*types.Report, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Report, error)
}

// ReportsHandler serves report generation and report history.
type ReportsHandler struct {
	reports   ReportGenerator
	validator *core.Validator
	logger    *slog.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(reports ReportGenerator, validator *core.Validator, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{reports: reports, validator: validator, logger: logger}
}

// RegisterRoutes mounts the report endpoints.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/reports", h.HandleGenerate)
	r.Get("/reports", h.HandleList)
	r.Get("/reports/{reportID}", h.HandleGet)
}

type generateReportRequest struct {
	UserID      string `json:"userId" validate:"required"`
	CompanyName string `json:"companyName" validate:"required"`
	Ticker      string `json:"ticker" validate:"required,ticker"`
}

type generateReportResponse struct {
	Report       string    `json:"report"`
	Company      string    `json:"company"`
	Ticker       string    `json:"ticker"`
	ReportID     string    `json:"reportId,omitempty"`
	ReportsUsed  int       `json:"reportsUsed"`
	ReportsLimit int       `json:"reportsLimit"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// HandleGenerate implements POST /v1/reports. A 403 with the current counters
// is returned when the monthly quota is exhausted; the model is never invoked
// in that case.
func (h *ReportsHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.reports.Generate(r.Context(), req.UserID, req.CompanyName, req.Ticker)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: generateReportResponse{
		Report:       result.Report,
		Company:      result.Company,
		Ticker:       result.Ticker,
		ReportID:     result.ReportID,
		ReportsUsed:  result.ReportsUsed,
		ReportsLimit: result.ReportsLimit,
		GeneratedAt:  result.GeneratedAt,
	}})
}

type reportSummary struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"companyName"`
	Ticker      string    `json:"ticker"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleList implements GET /v1/reports?userId=. Report content is omitted
// from the listing; clients fetch a single report for the full text.
func (h *ReportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"userId query parameter is required",
			nil,
		))
		return
	}

	list, err := h.reports.ListByUser(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summaries := make([]reportSummary, 0, len(list))
	for _, rep := range list {
		summaries = append(summaries, reportSummary{
			ID:          rep.ID,
			CompanyName: rep.CompanyName,
			Ticker:      rep.Ticker,
			CreatedAt:   rep.CreatedAt,
		})
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summaries})
}

// HandleGet implements GET /v1/reports/{reportID}.
func (h *ReportsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")

	report, err := h.reports.GetByID(r.Context(), reportID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}
