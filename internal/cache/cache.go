// Package cache memoizes expensive aggregate computations for a fixed time.
//
// Entries live in process memory and, when a Redis client is configured, in
// Redis as well so several API instances share one computation. Concurrent
// misses on the same key are collapsed into a single call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redeclipse_cache_hits_total",
		Help: "Cache hits by cache name and tier",
	}, []string{"cache", "tier"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redeclipse_cache_misses_total",
		Help: "Cache misses by cache name",
	}, []string{"cache"})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redeclipse_cache_entries",
		Help: "Entries held in process memory",
	})
)

// RedisClient is the subset of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Options configures a Cache.
type Options struct {
	Enabled       bool
	Redis         RedisClient
	Prefix        string
	CleanInterval time.Duration
	Logger        *zap.Logger
}

type entry struct {
	value   any
	expires time.Time
}

// Cache is a TTL cache shared by every memoized function.
type Cache struct {
	enabled       bool
	redis         RedisClient
	prefix        string
	cleanInterval time.Duration
	logger        *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time

	scheduler gocron.Scheduler
}

// New creates a cache. A nil *Cache or a disabled one calls through.
func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Prefix == "" {
		opts.Prefix = "redeclipse:"
	}
	if opts.CleanInterval <= 0 {
		opts.CleanInterval = time.Minute
	}
	return &Cache{
		enabled:       opts.Enabled,
		redis:         opts.Redis,
		prefix:        opts.Prefix,
		cleanInterval: opts.CleanInterval,
		logger:        opts.Logger.Sugar(),
		entries:       make(map[string]entry),
		now:           time.Now,
	}
}

// StartJanitor schedules a periodic sweep of expired entries.
func (c *Cache) StartJanitor() error {
	if c == nil || !c.enabled {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create cache scheduler: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(c.cleanInterval),
		gocron.NewTask(func() {
			if n := c.Sweep(); n > 0 {
				c.logger.Debugw("Swept expired cache entries", "count", n)
			}
		}),
	); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	s.Start()
	c.scheduler = s
	return nil
}

// Stop shuts the janitor down.
func (c *Cache) Stop() error {
	if c == nil || c.scheduler == nil {
		return nil
	}
	return c.scheduler.Shutdown()
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	cacheEntries.Set(float64(len(c.entries)))
	return removed
}

// Len returns the number of entries in process memory, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Ping checks the Redis tier, if any.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
	n := len(c.entries)
	c.mu.Unlock()
	cacheEntries.Set(float64(n))
}

func (c *Cache) remoteGet(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	raw, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnw("Redis cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warnw("Discarding undecodable cache payload", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) remoteSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warnw("Failed to encode cache payload", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warnw("Redis cache write failed", "key", key, "error", err)
	}
}

// computeTimeout bounds a shared computation once it no longer follows the
// context of the caller that started it.
const computeTimeout = 2 * time.Minute

// Wrap memoizes fn for ttl under name plus the key derived from its argument.
// Errors are never cached.
func Wrap[A any, V any](c *Cache, name string, ttl time.Duration, key func(A) string, fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	if c == nil || !c.enabled {
		return fn
	}

	return func(ctx context.Context, arg A) (V, error) {
		k := name + ":" + key(arg)

		if v, ok := c.get(k); ok {
			if typed, ok := v.(V); ok {
				cacheHits.WithLabelValues(name, "memory").Inc()
				return typed, nil
			}
		}

		var remote V
		if c.remoteGet(ctx, k, &remote) {
			cacheHits.WithLabelValues(name, "redis").Inc()
			c.set(k, remote, ttl)
			return remote, nil
		}

		cacheMisses.WithLabelValues(name).Inc()
		// The shared computation outlives the caller that started it. Each
		// caller stops waiting when its own ctx ends.
		ch := c.group.DoChan(k, func() (any, error) {
			shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
			defer cancel()
			v, err := fn(shared, arg)
			if err != nil {
				return nil, err
			}
			c.set(k, v, ttl)
			c.remoteSet(shared, k, v, ttl)
			return v, nil
		})

		var zero V
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return zero, res.Err
			}
			return res.Val.(V), nil
		}
	}
}
