// Package reports implements research report generation: quota gating, model
// invocation, and persistence of the generated report.
package reports

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"equitylens/internal/types"
)

// Generator produces report text from a model provider.
type Generator interface {
	GenerateReport(ctx context.Context, prompt string) (string, error)
}

// Store persists generated reports.
type Store interface {
	Insert(ctx context.Context, report *types.Report) error
	GetByID(ctx context.Context, reportID string) (*types.Report, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Report, error)
}

// Meter is the subscription-side dependency: slot acquisition and release.
type Meter interface {
	AcquireReportSlot(ctx context.Context, userID string) (applied bool, used, limit int, err error)
	ReleaseReportSlot(ctx context.Context, userID string) error
}

// Result is the outcome of a successful generation. ReportID is empty when
// the report text was produced but could not be persisted; the caller still
// receives the content.
type Result struct {
	Report       string
	Company      string
	Ticker       string
	ReportID     string
	ReportsUsed  int
	ReportsLimit int
	GeneratedAt  time.Time
}

// Service orchestrates report generation.
type Service struct {
	generator Generator
	store     Store
	meter     Meter
	logger    *slog.Logger

	clock func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates the report service.
func NewService(generator Generator, store Store, meter Meter, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		generator: generator,
		store:     store,
		meter:     meter,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a research report for a company on behalf of a user.
//
// The quota slot is claimed atomically before the model call, so the model is
// never invoked for an over-quota user and concurrent requests cannot
// collectively exceed the limit. If generation or persistence fails after the
// claim, the slot is released so failed attempts do not count against the user.
func (s *Service) Generate(ctx context.Context, userID, companyName, ticker string) (*Result, error) {
	applied, used, limit, err := s.meter.AcquireReportSlot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeLimitReportsExceeded,
			"monthly report limit reached, upgrade to generate more reports",
			nil,
			map[string]any{
				"reportsUsed":  used,
				"reportsLimit": limit,
			},
		)
	}

	content, err := s.generator.GenerateReport(ctx, BuildPrompt(companyName, ticker))
	if err != nil {
		s.releaseSlot(ctx, userID)
		return nil, err
	}

	now := s.clock().UTC()
	report := &types.Report{
		ID:          uuid.NewString(),
		UserID:      userID,
		CompanyName: companyName,
		Ticker:      strings.ToUpper(ticker),
		Content:     content,
		CreatedAt:   now,
	}

	reportID := report.ID
	if err := s.store.Insert(ctx, report); err != nil {
		// The user still gets the generated text; an unsaved report does not
		// count against the quota.
		s.logger.Error("failed to save report",
			slog.String("user_id", userID),
			slog.String("ticker", report.Ticker),
			slog.Any("error", err),
		)
		s.releaseSlot(ctx, userID)
		reportID = ""
		used--
	}

	return &Result{
		Report:       content,
		Company:      companyName,
		Ticker:       report.Ticker,
		ReportID:     reportID,
		ReportsUsed:  used,
		ReportsLimit: limit,
		GeneratedAt:  now,
	}, nil
}

func (s *Service) releaseSlot(ctx context.Context, userID string) {
	if err := s.meter.ReleaseReportSlot(ctx, userID); err != nil {
		s.logger.Error("failed to release report slot",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}

// GetByID fetches a single saved report.
func (s *Service) GetByID(ctx context.Context, reportID string) (*types.Report, error) {
	return s.store.GetByID(ctx, reportID)
}

// ListByUser returns the user's saved reports, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*types.Report, error) {
	return s.store.ListByUser(ctx, userID)
}
