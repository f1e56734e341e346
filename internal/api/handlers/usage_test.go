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
	"equitylens/internal/types"
)

type fakeUsageReader struct {
	snapshot *types.UsageSnapshot
	err      error
	userIDs  []string
}

func (f *fakeUsageReader) Usage(_ context.Context, userID string) (*types.UsageSnapshot, error) {
	f.userIDs = append(f.userIDs, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func newUsageRouter(usage UsageReader) *chi.Mux {
	h := NewUsageHandler(usage, core.NewValidator(), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestUsageHandler_CheckUsage_Success(t *testing.T) {
	usage := &fakeUsageReader{snapshot: &types.UsageSnapshot{
		CanGenerate:      true,
		ReportsUsed:      2,
		ReportsLimit:     5,
		RemainingReports: 3,
	}}
	router := newUsageRouter(usage)

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{"userId":"user_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_1"}, usage.userIDs)

	var resp struct {
		Data types.UsageSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.CanGenerate)
	assert.Equal(t, 2, resp.Data.ReportsUsed)
	assert.Equal(t, 5, resp.Data.ReportsLimit)
	assert.Equal(t, 3, resp.Data.RemainingReports)
}

func TestUsageHandler_CheckUsage_OverLimitStillOK(t *testing.T) {
	// The usage check reports the state; it never rejects on quota.
	usage := &fakeUsageReader{snapshot: &types.UsageSnapshot{
		CanGenerate:      false,
		ReportsUsed:      5,
		ReportsLimit:     5,
		RemainingReports: 0,
	}}
	router := newUsageRouter(usage)

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{"userId":"user_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"canGenerate":false`)
}

func TestUsageHandler_CheckUsage_MissingUserID(t *testing.T) {
	usage := &fakeUsageReader{}
	router := newUsageRouter(usage)

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationMissingField))
	assert.Empty(t, usage.userIDs)
}

func TestUsageHandler_CheckUsage_MalformedJSON(t *testing.T) {
	usage := &fakeUsageReader{}
	router := newUsageRouter(usage)

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{"userId":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeValidationInvalidField))
}

func TestUsageHandler_CheckUsage_ServiceError(t *testing.T) {
	usage := &fakeUsageReader{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)}
	router := newUsageRouter(usage)

	req := httptest.NewRequest(http.MethodPost, "/usage", strings.NewReader(`{"userId":"user_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeInternalDB))
}
