package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"equitylens/internal/types"
)

// maxReportListSize caps the history listing to keep responses bounded.
const maxReportListSize = 50

// ReportRepo persists generated research reports. Rows are append-only; the
// service never mutates or deletes a saved report.
type ReportRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewReportRepo creates a new ReportRepo backed by the given database
// connection (pool or transaction).
func NewReportRepo(db DBTX, logger *slog.Logger) *ReportRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportRepo{db: db, logger: logger}
}

// Insert saves a generated report.
func (r *ReportRepo) Insert(ctx context.Context, report *types.Report) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reports (id, user_id, company_name, ticker, report_content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ID,
		report.UserID,
		report.CompanyName,
		report.Ticker,
		report.Content,
		report.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save report", err)
	}
	return nil
}

// GetByID fetches a single report.
func (r *ReportRepo) GetByID(ctx context.Context, reportID string) (*types.Report, error) {
	var report types.Report
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, company_name, ticker, report_content, created_at
		 FROM reports
		 WHERE id = $1`,
		reportID,
	).Scan(
		&report.ID,
		&report.UserID,
		&report.CompanyName,
		&report.Ticker,
		&report.Content,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundReport, "report not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch report", err)
	}
	return &report, nil
}

// ListByUser returns the user's reports, newest first, capped at 50 rows.
func (r *ReportRepo) ListByUser(ctx context.Context, userID string) ([]*types.Report, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, company_name, ticker, report_content, created_at
		 FROM reports
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID,
		maxReportListSize,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reports", err)
	}
	defer rows.Close()

	reports := make([]*types.Report, 0)
	for rows.Next() {
		var report types.Report
		if err := rows.Scan(
			&report.ID,
			&report.UserID,
			&report.CompanyName,
			&report.Ticker,
			&report.Content,
			&report.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan report row", err)
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate report rows", err)
	}

	return reports, nil
}
