package product

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

// VersionCounter names the redis counter embedded in every catalog cache key.
const VersionCounter = "catalog_version"

type cacheStore interface {
	Counter(ctx context.Context, name string) (int64, error)
	BumpCounter(ctx context.Context, name string) (int64, error)
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Cache is a cache-aside store for catalog reads. Keys embed the catalog
// version, so bumping the version orphans every cached page at once.
type Cache struct {
	store  cacheStore
	ttl    time.Duration
	jitter time.Duration
	logg   *logger.Logger
	group  singleflight.Group
}

func NewCache(store cacheStore, cfg config.CatalogConfig, logg *logger.Logger) *Cache {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{store: store, ttl: ttl, jitter: cfg.CacheJitter, logg: logg}
}

// Fetch returns the cached value for (kind, params) or loads, stores and
// returns it. Concurrent misses for the same key share one load. Redis
// failures degrade to a direct load.
func Fetch[T any](ctx context.Context, c *Cache, kind string, params any, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}

	key, err := c.key(ctx, kind, params)
	if err != nil {
		c.warn(ctx, "catalog cache key unavailable", err)
		return load(ctx)
	}

	if raw, err := c.store.GetBytes(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn(ctx, "catalog cache read failed", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		if payload, err := json.Marshal(value); err == nil {
			if err := c.store.Set(ctx, key, payload, c.expiry()); err != nil {
				c.warn(ctx, "catalog cache write failed", err)
			}
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate bumps the catalog version.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	_, err := c.store.BumpCounter(ctx, VersionCounter)
	return err
}

func (c *Cache) key(ctx context.Context, kind string, params any) (string, error) {
	version, err := c.store.Counter(ctx, VersionCounter)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode cache params: %w", err)
	}
	sum := sha256.Sum256(payload)
	return c.store.CacheKey("catalog", "v"+strconv.FormatInt(version, 10), kind, hex.EncodeToString(sum[:8])), nil
}

func (c *Cache) expiry() time.Duration {
	if c.jitter <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(int64(c.jitter)))
}

func (c *Cache) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
}
