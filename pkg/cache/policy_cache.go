// Package cache holds the optional Redis-backed moderation policy cache.
// Workers for the same moderator share derived topics across processes
// instead of re-deriving them on every start.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sneakbots/sentinel/pkg/models"
)

// DefaultPolicyTTL bounds how long a cached policy may serve before the
// store is consulted again.
const DefaultPolicyTTL = 15 * time.Minute

// PolicyCache stores policies keyed by moderator id. Every failure path
// degrades to a cache miss; the cache never breaks policy loading.
type PolicyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPolicyCache connects a cache client. A non-positive ttl falls back to
// DefaultPolicyTTL.
func NewPolicyCache(addr string, ttl time.Duration, logger *slog.Logger) *PolicyCache {
	if ttl <= 0 {
		ttl = DefaultPolicyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

func policyKey(moderatorID uuid.UUID) string {
	return fmt.Sprintf("sentinel:policy:%s", moderatorID)
}

// Get returns the cached policy for a moderator, if any.
func (c *PolicyCache) Get(ctx context.Context, moderatorID uuid.UUID) (*models.Policy, bool) {
	data, err := c.client.Get(ctx, policyKey(moderatorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Policy cache read failed", "moderator_id", moderatorID, "error", err)
		return nil, false
	}

	var policy models.Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		c.logger.Warn("Dropping corrupt policy cache entry", "moderator_id", moderatorID, "error", err)
		return nil, false
	}
	return &policy, true
}

// Set stores the policy with the cache's TTL.
func (c *PolicyCache) Set(ctx context.Context, moderatorID uuid.UUID, policy *models.Policy) {
	data, err := json.Marshal(policy)
	if err != nil {
		c.logger.Warn("Policy cache encode failed", "moderator_id", moderatorID, "error", err)
		return
	}
	if err := c.client.Set(ctx, policyKey(moderatorID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Policy cache write failed", "moderator_id", moderatorID, "error", err)
	}
}

// Invalidate removes the moderator's cached policy, for guideline updates.
func (c *PolicyCache) Invalidate(ctx context.Context, moderatorID uuid.UUID) {
	if err := c.client.Del(ctx, policyKey(moderatorID)).Err(); err != nil {
		c.logger.Warn("Policy cache invalidate failed", "moderator_id", moderatorID, "error", err)
	}
}

// Close releases the client.
func (c *PolicyCache) Close() error {
	return c.client.Close()
}

// PolicyLoader is the upstream the cached loader falls back to.
type PolicyLoader interface {
	Load(ctx context.Context, moderatorID uuid.UUID) (*models.Policy, error)
}

// CachedPolicyLoader decorates a policy loader with the cache.
type CachedPolicyLoader struct {
	cache *PolicyCache
	inner PolicyLoader
}

// NewCachedPolicyLoader wraps inner with cache.
func NewCachedPolicyLoader(cache *PolicyCache, inner PolicyLoader) *CachedPolicyLoader {
	if cache == nil {
		panic("NewCachedPolicyLoader: cache must not be nil")
	}
	if inner == nil {
		panic("NewCachedPolicyLoader: inner must not be nil")
	}
	return &CachedPolicyLoader{cache: cache, inner: inner}
}

// Load serves from the cache when possible and populates it after a store
// load.
func (l *CachedPolicyLoader) Load(ctx context.Context, moderatorID uuid.UUID) (*models.Policy, error) {
	if policy, ok := l.cache.Get(ctx, moderatorID); ok {
		return policy, nil
	}
	policy, err := l.inner.Load(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	l.cache.Set(ctx, moderatorID, policy)
	return policy, nil
}
