package redisclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	catalogGenKey    = "catalog:gen"
	catalogKeyPrefix = "catalog:"
)

// reads the current generation and the entry under it in one round trip
var getCurrentScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1])
if not gen then
	gen = '0'
end
return redis.call('GET', ARGV[1] .. gen .. ':' .. ARGV[2])
`)

// CatalogCache keys every entry under a generation counter. Invalidate bumps
// the counter, orphaning all older entries at once; they age out via TTL.
// Redis errors degrade to cache misses.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewCatalogCache(c *Client, ttl time.Duration, log *slog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &CatalogCache{rdb: c.redisdb, ttl: ttl, log: log}
}

func (c *CatalogCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := getCurrentScript.Run(ctx, c.rdb, []string{catalogGenKey}, catalogKeyPrefix, key).Text()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "catalog cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return []byte(b), true
}

// Generation returns the current counter. Callers read it before hitting the
// store and hand it back to Set.
func (c *CatalogCache) Generation(ctx context.Context) (string, bool) {
	gen, err := c.rdb.Get(ctx, catalogGenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		c.log.WarnContext(ctx, "catalog cache generation read failed", "err", err)
		return "", false
	}
	return gen, true
}

// Set writes under gen, not the current generation. If an invalidation ran
// since gen was read, the entry is unreachable and ages out via TTL.
func (c *CatalogCache) Set(ctx context.Context, gen, key string, val []byte) {
	if err := c.rdb.Set(ctx, catalogKeyPrefix+gen+":"+key, val, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "catalog cache set failed", "key", key, "err", err)
	}
}

func (c *CatalogCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, catalogGenKey).Err(); err != nil {
		c.log.WarnContext(ctx, "catalog cache invalidate failed", "err", err)
	}
}
