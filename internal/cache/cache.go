/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache keeps generated plans in Redis until the end of their day.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/planner"
	"github.com/friendsincode/familyzen/internal/telemetry"
)

// KeyPlan prefixes plan entries: KeyPlan + family + ":" + date + ":" + input hash.
const KeyPlan = "familyzen:cache:plan:"

const (
	pingTimeout   = 5 * time.Second
	scanBatchSize = 100
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupFailed  = "error"
)

// Config selects the Redis instance.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DisableOnError stops using Redis after the first failed command.
	DisableOnError bool
}

// DefaultConfig points at a local Redis and trips on the first error.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		DisableOnError: true,
	}
}

// Cache is a Redis-backed planner.Cache. Once tripped it behaves as an
// always-empty cache.
type Cache struct {
	client  *redis.Client
	logger  zerolog.Logger
	cfg     Config
	tripped atomic.Bool
	now     func() time.Time
}

// New connects to Redis. An unreachable server is not an error; the
// returned cache starts tripped.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	c := &Cache{
		logger: logging.Component(logger, "cache"),
		cfg:    cfg,
		now:    time.Now,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, plan cache disabled")
		_ = client.Close()
		c.tripped.Store(true)
		return c, nil
	}

	c.client = client
	c.logger.Info().Str("addr", cfg.RedisAddr).Msg("plan cache connected")
	return c, nil
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsAvailable reports whether lookups still reach Redis.
func (c *Cache) IsAvailable() bool {
	return c.client != nil && !c.tripped.Load()
}

// fail records a Redis error and trips the cache when configured to.
func (c *Cache) fail(op string, err error) error {
	c.logger.Debug().Err(err).Str("operation", op).Msg("redis command failed")
	if c.cfg.DisableOnError && c.tripped.CompareAndSwap(false, true) {
		c.logger.Warn().Err(err).Msg("plan cache disabled after redis error")
	}
	return err
}

// PlanKey derives the cache key for a resolved input on a reference date.
// Different inputs for the same family and day never share an entry.
func PlanKey(familyID string, in planner.Input, ref time.Time) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal plan input: %w", err)
	}
	sum := sha256.Sum256(data)
	return KeyPlan + familyID + ":" + ref.Format(time.DateOnly) + ":" + hex.EncodeToString(sum[:]), nil
}

// ttlUntilEndOfDay is the time from now until midnight after ref.
func ttlUntilEndOfDay(ref, now time.Time) time.Duration {
	y, m, d := ref.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, ref.Location()).Sub(now)
}

// GetPlan returns the cached plan for familyID, in and ref.
func (c *Cache) GetPlan(ctx context.Context, familyID string, in planner.Input, ref time.Time) (*planner.Plan, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	key, err := PlanKey(familyID, in, ref)
	if err != nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		telemetry.PlanCacheLookupsTotal.WithLabelValues(lookupMiss).Inc()
		return nil, false
	case err != nil:
		telemetry.PlanCacheLookupsTotal.WithLabelValues(lookupFailed).Inc()
		_ = c.fail("get", err)
		return nil, false
	}

	var plan planner.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("discarding unreadable cache entry")
		telemetry.PlanCacheLookupsTotal.WithLabelValues(lookupMiss).Inc()
		return nil, false
	}

	telemetry.PlanCacheLookupsTotal.WithLabelValues(lookupHit).Inc()
	c.logger.Debug().Str("family_id", familyID).Msg("plan cache hit")
	return &plan, true
}

// SetPlan stores plan until the end of its reference day. Plans for days
// that are already over are not stored.
func (c *Cache) SetPlan(ctx context.Context, plan *planner.Plan) error {
	if !c.IsAvailable() {
		return nil
	}
	ttl := ttlUntilEndOfDay(plan.ReferenceDate, c.now())
	if ttl <= 0 {
		return nil
	}

	key, err := PlanKey(plan.FamilyID, plan.Received, plan.ReferenceDate)
	if err != nil {
		return err
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return c.fail("set", err)
	}
	c.logger.Debug().Str("family_id", plan.FamilyID).Dur("ttl", ttl).Msg("plan cached")
	return nil
}

// InvalidateFamily removes every cached plan of familyID.
func (c *Cache) InvalidateFamily(ctx context.Context, familyID string) error {
	if !c.IsAvailable() {
		return nil
	}

	var keys []string
	iter := c.client.Scan(ctx, 0, KeyPlan+familyID+":*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return c.fail("scan", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return c.fail("del", err)
	}
	c.logger.Debug().Str("family_id", familyID).Int("keys", len(keys)).Msg("plan cache invalidated")
	return nil
}

var _ planner.Cache = (*Cache)(nil)
