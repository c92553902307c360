package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhook-events/core"
)

const statsCacheKeyPrefix = "go-webhook-events::ledger::v1"

// StatsReader is the read side of the ledger used by dashboards.
type StatsReader interface {
	ListByStatus(ctx context.Context, status core.Status, limit int) ([]core.WebhookEvent, error)
	Stats(ctx context.Context) (core.WebhookStats, error)
}

// CachedStatsStore decorates the ledger read side with a short-lived cache.
// Dashboards poll stats far more often than the ledger changes shape; the
// cache TTL is owned by the injected cache service.
type CachedStatsStore struct {
	base  StatsReader
	cache repositorycache.CacheService
}

func NewCachedStatsStore(base StatsReader, cacheService repositorycache.CacheService) (*CachedStatsStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base stats reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: stats cache service is required")
	}
	return &CachedStatsStore{base: base, cache: cacheService}, nil
}

// StatsCacheKey is the deterministic key contract for the aggregate counters.
func StatsCacheKey() string {
	return statsCacheKeyPrefix + "::stats"
}

// ListCacheKey is the deterministic key contract for status listings.
func ListCacheKey(status core.Status, limit int) string {
	return strings.Join([]string{
		statsCacheKeyPrefix,
		"list",
		status.String(),
		strconv.Itoa(limit),
	}, "::")
}

func (s *CachedStatsStore) Stats(ctx context.Context) (core.WebhookStats, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookStats{}, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, StatsCacheKey(), func(ctx context.Context) (core.WebhookStats, error) {
		return s.base.Stats(ctx)
	})
}

func (s *CachedStatsStore) ListByStatus(ctx context.Context, status core.Status, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	if !status.Valid() {
		return nil, core.BadInputError(fmt.Sprintf("sqlstore: unknown webhook status %q", status))
	}
	events, err := repositorycache.GetOrFetch(ctx, s.cache, ListCacheKey(status, limit), func(ctx context.Context) ([]core.WebhookEvent, error) {
		return s.base.ListByStatus(ctx, status, limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookEvent, 0, len(events))
	for _, event := range events {
		out = append(out, event.Clone())
	}
	return out, nil
}

// Invalidate drops the cached aggregates, typically after a manual retry.
func (s *CachedStatsStore) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached stats store is not configured")
	}
	if err := s.cache.Delete(ctx, StatsCacheKey()); err != nil {
		return err
	}
	return nil
}

var _ StatsReader = (*CachedStatsStore)(nil)
