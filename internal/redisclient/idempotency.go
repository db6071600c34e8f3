package redisclient

import (
	"context"
	"time"
)

// IdempotencyGuard claims request keys with SETNX so a retried request is
// detected across every API instance.
type IdempotencyGuard struct {
	c *Client
}

func NewIdempotencyGuard(c *Client) *IdempotencyGuard {
	return &IdempotencyGuard{c: c}
}

func (g *IdempotencyGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.c.redisdb.SetNX(ctx, key, 1, ttl).Result()
}

func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.c.redisdb.Del(ctx, key).Err()
}
