package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equitylens/internal/core"
	"equitylens/internal/reports"
	"equitylens/internal/types"
)

type fakeReportService struct {
	result      *reports.Result
	generateErr error
	report      *types.Report
	list        []*types.Report
	listErr     error

	generateCalls int
}

func (f *fakeReportService) Generate(_ context.Context, userID, companyName, ticker string) (*reports.Result, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.result, nil
}

func (f *fakeReportService) GetByID(_ context.Context, reportID string) (*types.Report, error) {
	if f.report == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundReport, "report not found", nil)
	}
	return f.report, nil
}

func (f *fakeReportService) ListByUser(_ context.Context, userID string) ([]*types.Report, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func newReportsRouter(svc ReportGenerator) *chi.Mux {
	h := NewReportsHandler(svc, core.NewValidator(), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestReportsHandler_Generate_Success(t *testing.T) {
	generatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeReportService{result: &reports.Result{
		Report:       "report text",
		Company:      "Tesla",
		Ticker:       "TSLA",
		ReportID:     "rep_123",
		ReportsUsed:  1,
		ReportsLimit: 5,
		GeneratedAt:  generatedAt,
	}}
	router := newReportsRouter(svc)

	body := `{"userId":"user_1","companyName":"Tesla","ticker":"tsla"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Report       string `json:"report"`
			Company      string `json:"company"`
			Ticker       string `json:"ticker"`
			ReportID     string `json:"reportId"`
			ReportsUsed  int    `json:"reportsUsed"`
			ReportsLimit int    `json:"reportsLimit"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "report text", resp.Data.Report)
	assert.Equal(t, "TSLA", resp.Data.Ticker)
	assert.Equal(t, "rep_123", resp.Data.ReportID)
	assert.Equal(t, 1, resp.Data.ReportsUsed)
	assert.Equal(t, 5, resp.Data.ReportsLimit)
}

func TestReportsHandler_Generate_QuotaExceeded(t *testing.T) {
	svc := &fakeReportService{generateErr: types.NewAppErrorWithDetails(
		types.ErrCodeLimitReportsExceeded,
		"monthly report limit reached, upgrade to generate more reports",
		nil,
		map[string]any{"reportsUsed": 5, "reportsLimit": 5},
	)}
	router := newReportsRouter(svc)

	body := `{"userId":"user_1","companyName":"Tesla","ticker":"TSLA"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeLimitReportsExceeded), resp.Error.Code)
	assert.EqualValues(t, 5, resp.Error.Details["reportsUsed"])
	assert.EqualValues(t, 5, resp.Error.Details["reportsLimit"])
}

func TestReportsHandler_Generate_MissingFields(t *testing.T) {
	svc := &fakeReportService{}
	router := newReportsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(`{"userId":"user_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.generateCalls)
}

func TestReportsHandler_Generate_InvalidTicker(t *testing.T) {
	svc := &fakeReportService{}
	router := newReportsRouter(svc)

	body := `{"userId":"user_1","companyName":"Tesla","ticker":"NOT A TICKER!!"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.generateCalls)
}

func TestReportsHandler_Generate_ModelUnavailable(t *testing.T) {
	svc := &fakeReportService{generateErr: types.NewAppError(
		types.ErrCodeUpstreamModel, "model API error", nil,
	)}
	router := newReportsRouter(svc)

	body := `{"userId":"user_1","companyName":"Tesla","ticker":"TSLA"}`
	req := httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeUpstreamModel))
}

func TestReportsHandler_List_RequiresUserID(t *testing.T) {
	svc := &fakeReportService{}
	router := newReportsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationMissingField))
}

func TestReportsHandler_List_OmitsContent(t *testing.T) {
	svc := &fakeReportService{list: []*types.Report{
		{
			ID:          "rep_1",
			UserID:      "user_1",
			CompanyName: "Tesla",
			Ticker:      "TSLA",
			Content:     "very long report text",
			CreatedAt:   time.Now().UTC(),
		},
	}}
	router := newReportsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/reports?userId=user_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"companyName":"Tesla"`)
	assert.NotContains(t, rec.Body.String(), "very long report text")
}

func TestReportsHandler_Get_NotFound(t *testing.T) {
	svc := &fakeReportService{}
	router := newReportsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/reports/rep_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeNotFoundReport))
}
