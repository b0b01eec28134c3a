package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// VerdictCache caches routing decisions keyed by the latest user message.
// A cache failure is never fatal: Get reports a miss and the classifier runs.
type VerdictCache interface {
	Get(ctx context.Context, userMessage string) (RoutingDecision, bool)
	Set(ctx context.Context, userMessage string, decision RoutingDecision)
}

// RedisVerdictCache implements VerdictCache on Redis with a TTL.
type RedisVerdictCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisVerdictCache creates a verdict cache with the given TTL.
func NewRedisVerdictCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisVerdictCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisVerdictCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func verdictKey(userMessage string) string {
	sum := sha256.Sum256([]byte(userMessage))
	return "enerzal:routing:" + hex.EncodeToString(sum[:])
}

// Get returns the cached decision for userMessage, if any.
func (c *RedisVerdictCache) Get(ctx context.Context, userMessage string) (RoutingDecision, bool) {
	data, err := c.client.Get(ctx, verdictKey(userMessage)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("verdict cache get failed", zap.Error(err))
		}
		return RoutingDecision{}, false
	}

	var decision RoutingDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		c.logger.Warn("verdict cache entry corrupt", zap.Error(err))
		return RoutingDecision{}, false
	}
	return decision, true
}

// Set stores decision for userMessage. Ambiguous verdicts are not cached so
// a transient classifier glitch cannot pin the fail-open default.
func (c *RedisVerdictCache) Set(ctx context.Context, userMessage string, decision RoutingDecision) {
	if decision.Verdict == "" {
		return
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, verdictKey(userMessage), data, c.ttl).Err(); err != nil {
		c.logger.Warn("verdict cache set failed", zap.Error(err))
	}
}
