package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"solarpunk-alphabot/config"
)

// maxCacheFailures is how many consecutive Redis errors mark the cache
// unhealthy; past it, lookups are skipped until the recovery backoff
// elapses.
const (
	maxCacheFailures = 3
	recoveryBackoff  = 30 * time.Second
)

// PriceCache is a Redis-backed cache for market stats with graceful
// degradation: when Redis is unavailable the scanner falls back to
// fetching directly from the source.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.Mutex
	healthy      bool
	failureCount int
	downSince    time.Time
}

// NewPriceCache connects to Redis. Connectivity problems degrade the
// cache rather than fail construction; the scanner works without it.
func NewPriceCache(cfg config.RedisConfig, logger zerolog.Logger) *PriceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	cache := &PriceCache{
		client:  client,
		ttl:     time.Duration(cfg.TTLSeconds) * time.Second,
		logger:  logger.With().Str("component", "price_cache").Logger(),
		healthy: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		cache.logger.Warn().Err(err).Msg("redis unreachable, price cache degraded")
		cache.markFailure()
	}

	return cache
}

// Get loads the cached value for symbol into dest, reporting whether a
// fresh entry was found.
func (c *PriceCache) Get(ctx context.Context, symbol string, dest interface{}) bool {
	if !c.usable() {
		return false
	}

	data, err := c.client.Get(ctx, c.key(symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.markFailure()
		}
		return false
	}

	c.markSuccess()
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

// Set stores the value for symbol with the configured TTL. Failures
// only degrade the cache.
func (c *PriceCache) Set(ctx context.Context, symbol string, value interface{}) {
	if !c.usable() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, c.key(symbol), data, c.ttl).Err(); err != nil {
		c.markFailure()
		return
	}
	c.markSuccess()
}

// Close releases the Redis connection.
func (c *PriceCache) Close() error {
	return c.client.Close()
}

func (c *PriceCache) key(symbol string) string {
	return fmt.Sprintf("alphabot:stats:%s", symbol)
}

func (c *PriceCache) usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthy {
		return true
	}
	// Probe again after the backoff elapses.
	if time.Since(c.downSince) > recoveryBackoff {
		c.healthy = true
		c.failureCount = 0
		return true
	}
	return false
}

func (c *PriceCache) markFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	if c.failureCount >= maxCacheFailures {
		c.healthy = false
		c.downSince = time.Now()
	}
}

func (c *PriceCache) markSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount = 0
	c.healthy = true
}
