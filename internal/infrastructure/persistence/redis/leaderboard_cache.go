// Package redis implements Redis caching for the PropsHub scoring engine.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/propshub/props-scoring-engine/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT CACHE
// Implements leaderboard.RowCache. The full (untruncated) snapshot of a
// scope - rows plus display title - is stored as one JSON blob keyed by the
// scope reference; the query layer handles truncation on the way out. A
// stale entry is at most TTL old, and grading invalidates eagerly, so graded
// winners never linger.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.RowCache over the generic Cache.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// Get returns the cached snapshot of a scope, or (Snapshot{}, false) on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, scopeRef string) (leaderboard.Snapshot, bool, error) {
	var snapshot leaderboard.Snapshot
	err := c.cache.Get(ctx, c.key(scopeRef), &snapshot)
	if errors.Is(err, ErrCacheMiss) {
		return leaderboard.Snapshot{}, false, nil
	}
	if err != nil {
		return leaderboard.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Set caches the snapshot of a scope with the given TTL.
func (c *LeaderboardCache) Set(ctx context.Context, scopeRef string, snapshot leaderboard.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLLeaderboardRows
	}
	if snapshot.Rows == nil {
		snapshot.Rows = []leaderboard.Row{}
	}
	return c.cache.Set(ctx, c.key(scopeRef), snapshot, ttl)
}

// Invalidate drops the cached snapshot of a scope.
func (c *LeaderboardCache) Invalidate(ctx context.Context, scopeRef string) error {
	return c.cache.Delete(ctx, c.key(scopeRef))
}

func (c *LeaderboardCache) key(scopeRef string) string {
	return PrefixLeaderboard + scopeRef
}
