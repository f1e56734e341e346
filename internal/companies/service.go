// Package companies provides the searchable listing of publicly traded
// companies backing the frontend's search box, with a Redis read-through
// cache in front of the database.
package companies

import (
	"context"
	"log/slog"
	"strings"

	"equitylens/internal/types"
)

// Store is the persistence dependency of the company service.
type Store interface {
	Search(ctx context.Context, query string) ([]*types.Company, error)
	GetByTicker(ctx context.Context, ticker string) (*types.Company, error)
}

// Service answers company lookups, consulting the cache before the store.
type Service struct {
	store  Store
	cache  *SearchCache
	logger *slog.Logger
}

// NewService creates the company service. cache may be nil, in which case all
// searches hit the store directly.
func NewService(store Store, cache *SearchCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// Search returns companies matching the query by ticker or name. Results are
// cached per normalized query.
func (s *Service) Search(ctx context.Context, query string) ([]*types.Company, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*types.Company{}, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, query); ok {
			return cached, nil
		}
	}

	companies, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, query, companies)
	}
	return companies, nil
}

// GetByTicker returns the company with the exact symbol.
func (s *Service) GetByTicker(ctx context.Context, ticker string) (*types.Company, error) {
	return s.store.GetByTicker(ctx, ticker)
}
