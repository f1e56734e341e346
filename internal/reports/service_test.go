package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equitylens/internal/types"
)

// --- Fakes ---

type fakeGenerator struct {
	calls   int
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) GenerateReport(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeReportStore struct {
	inserted  []*types.Report
	insertErr error
}

func (f *fakeReportStore) Insert(_ context.Context, report *types.Report) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, report)
	return nil
}

func (f *fakeReportStore) GetByID(_ context.Context, reportID string) (*types.Report, error) {
	for _, r := range f.inserted {
		if r.ID == reportID {
			return r, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundReport, "report not found", nil)
}

func (f *fakeReportStore) ListByUser(_ context.Context, userID string) ([]*types.Report, error) {
	var out []*types.Report
	for _, r := range f.inserted {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMeter struct {
	applied  bool
	used     int
	limit    int
	err      error
	acquires int
	releases int
}

func (f *fakeMeter) AcquireReportSlot(_ context.Context, _ string) (bool, int, int, error) {
	f.acquires++
	if f.err != nil {
		return false, 0, 0, f.err
	}
	if f.applied {
		f.used++
	}
	return f.applied, f.used, f.limit, nil
}

func (f *fakeMeter) ReleaseReportSlot(_ context.Context, _ string) error {
	f.releases++
	if f.used > 0 {
		f.used--
	}
	return nil
}

// --- Tests ---

func TestService_Generate_Success(t *testing.T) {
	gen := &fakeGenerator{text: "# Tesla Research Report\n\nStrong moat."}
	store := &fakeReportStore{}
	meter := &fakeMeter{applied: true, used: 0, limit: 5}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(gen, store, meter, nil, WithClock(func() time.Time { return now }))

	result, err := svc.Generate(context.Background(), "user_1", "Tesla", "tsla")
	require.NoError(t, err)

	assert.Equal(t, gen.text, result.Report)
	assert.Equal(t, "Tesla", result.Company)
	assert.Equal(t, "TSLA", result.Ticker)
	assert.NotEmpty(t, result.ReportID)
	assert.Equal(t, 1, result.ReportsUsed)
	assert.Equal(t, 5, result.ReportsLimit)
	assert.Equal(t, now, result.GeneratedAt)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "TSLA", store.inserted[0].Ticker)
	assert.Equal(t, "Tesla", store.inserted[0].CompanyName)
	assert.Equal(t, 0, meter.releases)

	// The prompt carries the company identity with the upper-cased symbol.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Tesla (TSLA)")
	assert.False(t, strings.Contains(gen.prompts[0], "[COMPANY_NAME]"))
}

func TestService_Generate_QuotaExhausted_ModelNeverCalled(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	store := &fakeReportStore{}
	meter := &fakeMeter{applied: false, used: 5, limit: 5}
	svc := NewService(gen, store, meter, nil)

	_, err := svc.Generate(context.Background(), "user_1", "Tesla", "TSLA")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeLimitReportsExceeded, appErr.Code)
	assert.Equal(t, 5, appErr.Details["reportsUsed"])
	assert.Equal(t, 5, appErr.Details["reportsLimit"])

	assert.Equal(t, 0, gen.calls)
	assert.Empty(t, store.inserted)
	assert.Equal(t, 0, meter.releases)
}

func TestService_Generate_ModelFailure_ReleasesSlot(t *testing.T) {
	gen := &fakeGenerator{err: types.NewAppError(types.ErrCodeUpstreamModel, "model API error", nil)}
	store := &fakeReportStore{}
	meter := &fakeMeter{applied: true, used: 0, limit: 5}
	svc := NewService(gen, store, meter, nil)

	_, err := svc.Generate(context.Background(), "user_1", "Tesla", "TSLA")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamModel, appErr.Code)

	// The failed attempt must not count against the user.
	assert.Equal(t, 1, meter.acquires)
	assert.Equal(t, 1, meter.releases)
	assert.Equal(t, 0, meter.used)
	assert.Empty(t, store.inserted)
}

func TestService_Generate_SaveFailure_ReturnsTextWithoutCounting(t *testing.T) {
	gen := &fakeGenerator{text: "report body"}
	store := &fakeReportStore{insertErr: types.NewAppError(types.ErrCodeInternalDB, "insert failed", nil)}
	meter := &fakeMeter{applied: true, used: 2, limit: 5}
	svc := NewService(gen, store, meter, nil)

	result, err := svc.Generate(context.Background(), "user_1", "Apple", "AAPL")
	require.NoError(t, err)

	// The user still gets the text, but without a report ID and without the
	// attempt counting against the quota.
	assert.Equal(t, "report body", result.Report)
	assert.Empty(t, result.ReportID)
	assert.Equal(t, 2, result.ReportsUsed)
	assert.Equal(t, 1, meter.releases)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Apple Inc.", "aapl")

	assert.Contains(t, prompt, "Apple Inc. (AAPL)")
	assert.NotContains(t, prompt, "[COMPANY_NAME]")
	assert.Contains(t, prompt, "BUSINESS MODEL DEEP DIVE")
	assert.Contains(t, prompt, "INVESTMENT RECOMMENDATION")
}
