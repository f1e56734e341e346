package companies

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"equitylens/internal/types"
)

// searchKeyPrefix namespaces search cache entries in Redis.
const searchKeyPrefix = "companies:search:"

// SearchCache is a read-through Redis cache for company search results.
// Cache failures are never surfaced to callers: a miss or a Redis error falls
// through to the database.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSearchCache creates a search cache with the given TTL.
func NewSearchCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SearchCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchCache{client: client, ttl: ttl, logger: logger}
}

func searchKey(query string) string {
	return searchKeyPrefix + strings.ToLower(strings.TrimSpace(query))
}

// Get returns the cached results for a query, or (nil, false) on miss.
func (c *SearchCache) Get(ctx context.Context, query string) ([]*types.Company, bool) {
	raw, err := c.client.Get(ctx, searchKey(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("search cache read failed", slog.Any("error", err))
		}
		return nil, false
	}

	var companies []*types.Company
	if err := json.Unmarshal(raw, &companies); err != nil {
		c.logger.Warn("search cache entry corrupt, ignoring", slog.Any("error", err))
		return nil, false
	}
	return companies, true
}

// Set stores the results for a query. Best effort.
func (c *SearchCache) Set(ctx context.Context, query string, companies []*types.Company) {
	raw, err := json.Marshal(companies)
	if err != nil {
		c.logger.Warn("search cache marshal failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, searchKey(query), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", slog.Any("error", err))
	}
}

// Probe adapts the Redis client to the health probe interface.
type Probe struct {
	Client *redis.Client
}

func (p Probe) Name() string { return "redis" }

func (p Probe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
