package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Local adapts Cache to the catalog's byte-oriented cache contract. Writes
// carry the generation observed before the store read; a write from an older
// generation is dropped so a read racing an invalidation cannot repopulate
// stale rows.
type Local struct {
	c *Cache

	mu  sync.Mutex
	gen uint64
}

func NewLocal(c *Cache) *Local {
	return &Local{c: c}
}

func (l *Local) Generation(context.Context) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strconv.FormatUint(l.gen, 10), true
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := l.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (l *Local) Set(_ context.Context, gen, key string, val []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != strconv.FormatUint(l.gen, 10) {
		return
	}
	l.c.Set(key, val)
}

func (l *Local) Invalidate(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.c.Clear()
}

// Guard is a single-process idempotency guard.
type Guard struct {
	c *Cache
}

func NewGuard(c *Cache) *Guard {
	return &Guard{c: c}
}

func (g *Guard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return g.c.SetNX(key, struct{}{}, ttl), nil
}

func (g *Guard) Release(_ context.Context, key string) error {
	g.c.Delete(key)
	return nil
}
