package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"equitylens/internal/types"
)

// maxSearchResults bounds a single company search.
const maxSearchResults = 10

// CompanyRepo provides read access to the company listings table. The table
// is seeded out of band; the API never writes to it. The exchange, sector and
// country columns are optional in the seed data, so queries fold NULLs to
// empty strings and the domain type keeps plain string fields.
type CompanyRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewCompanyRepo creates a new CompanyRepo backed by the given database
// connection (pool or transaction).
func NewCompanyRepo(db DBTX, logger *slog.Logger) *CompanyRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyRepo{db: db, logger: logger}
}

// Search matches companies by ticker or name, case-insensitive substring.
// Ticker matches sort first so "APP" ranks AAPL-style symbols above companies
// whose names merely contain the fragment.
func (r *CompanyRepo) Search(ctx context.Context, query string) ([]*types.Company, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"

	rows, err := r.db.Query(ctx,
		`SELECT id, ticker, name, COALESCE(exchange, ''), COALESCE(sector, ''), COALESCE(country, '')
		 FROM companies
		 WHERE ticker ILIKE $1 OR name ILIKE $1
		 ORDER BY (ticker ILIKE $1) DESC, ticker ASC
		 LIMIT $2`,
		pattern,
		maxSearchResults,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to search companies", err)
	}
	defer rows.Close()

	companies := make([]*types.Company, 0)
	for rows.Next() {
		var c types.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Name, &c.Exchange, &c.Sector, &c.Country); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan company row", err)
		}
		companies = append(companies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate company rows", err)
	}

	return companies, nil
}

// GetByTicker fetches a single company by its exact (case-insensitive) symbol.
func (r *CompanyRepo) GetByTicker(ctx context.Context, ticker string) (*types.Company, error) {
	var c types.Company
	err := r.db.QueryRow(ctx,
		`SELECT id, ticker, name, COALESCE(exchange, ''), COALESCE(sector, ''), COALESCE(country, '')
		 FROM companies
		 WHERE ticker = $1`,
		strings.ToUpper(strings.TrimSpace(ticker)),
	).Scan(&c.ID, &c.Ticker, &c.Name, &c.Exchange, &c.Sector, &c.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCompany, "company not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch company", err)
	}
	return &c, nil
}
