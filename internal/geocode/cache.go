package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the small key-value surface CachedGeocoder needs.
//
// WHY AN INTERFACE AND NOT *redis.Client DIRECTLY?
// Same reason the service takes repository.UserRepository instead of
// *sqlite.DB: tests inject an in-memory map implementation and never need a
// Redis server. Redis is also optional at runtime — when REDIS_ADDR isn't
// configured the server skips the cache layer entirely.
type Cache interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// cacheTTL is how long a resolved zip stays cached. Zip centroids change on
// the order of never, but a bounded TTL means a bad entry (or a provider-side
// correction) eventually heals on its own.
const cacheTTL = 30 * 24 * time.Hour

// notFoundSentinel marks a cached negative result. Unknown zips are worth
// caching too — otherwise every save of a typo'd zip re-queries the provider.
const notFoundSentinel = "!"

// RedisCache implements Cache on top of go-redis.
type RedisCache struct {
	rdb *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an already-connected redis client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil // key absent — a miss, not an error
	}
	if err != nil {
		return "", false, fmt.Errorf("geocode: redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("geocode: redis set %s: %w", key, err)
	}
	return nil
}

// CachedGeocoder wraps a Geocoder with a read-through cache.
//
// CACHE FAILURE POLICY:
// A broken cache must never break geocoding — on any cache error we log and
// fall through to the inner geocoder. The cache is an optimization, not a
// dependency.
type CachedGeocoder struct {
	inner  Geocoder
	cache  Cache
	logger *slog.Logger
}

var _ Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder wraps inner with the given cache.
func NewCachedGeocoder(inner Geocoder, cache Cache, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, logger: logger}
}

func cacheKey(zip string) string {
	return "geocode:us:" + zip
}

// Lookup returns the cached location when present, otherwise asks the inner
// geocoder and stores the result. Negative results (ErrZipNotFound) are
// cached with a sentinel value; transport errors are never cached.
func (g *CachedGeocoder) Lookup(ctx context.Context, zip string) (*Location, error) {
	key := cacheKey(zip)

	if val, ok, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn("geocode cache read failed",
			slog.String("zip", zip),
			slog.String("error", err.Error()),
		)
	} else if ok {
		if val == notFoundSentinel {
			return nil, ErrZipNotFound
		}
		var loc Location
		if err := json.Unmarshal([]byte(val), &loc); err != nil {
			// Corrupt entry — ignore it and re-resolve below.
			g.logger.Warn("geocode cache entry corrupt",
				slog.String("zip", zip),
				slog.String("error", err.Error()),
			)
		} else {
			return &loc, nil
		}
	}

	loc, err := g.inner.Lookup(ctx, zip)
	if errors.Is(err, ErrZipNotFound) {
		if cerr := g.cache.Set(ctx, key, notFoundSentinel, cacheTTL); cerr != nil {
			g.logger.Warn("geocode cache write failed", slog.String("zip", zip), slog.String("error", cerr.Error()))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(loc)
	if err != nil {
		// Location is three plain fields; this can't realistically fail.
		return loc, nil
	}
	if cerr := g.cache.Set(ctx, key, string(encoded), cacheTTL); cerr != nil {
		g.logger.Warn("geocode cache write failed", slog.String("zip", zip), slog.String("error", cerr.Error()))
	}

	return loc, nil
}
