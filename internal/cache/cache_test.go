package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_Expiry(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Set("k", 1)

	if v, ok := c.Get("k"); !ok || v.(int) != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expiry")
	}
}

func TestCache_SetNX(t *testing.T) {
	c := New(time.Minute)

	if !c.SetNX("k", 1, time.Minute) {
		t.Fatal("first SetNX must win")
	}
	if c.SetNX("k", 2, time.Minute) {
		t.Fatal("second SetNX must lose")
	}

	c.Delete("k")
	if !c.SetNX("k", 3, 10*time.Millisecond) {
		t.Fatal("SetNX after delete must win")
	}

	time.Sleep(20 * time.Millisecond)
	if !c.SetNX("k", 4, time.Minute) {
		t.Fatal("SetNX over an expired key must win")
	}
}

func TestLocal_Invalidate(t *testing.T) {
	l := NewLocal(New(time.Minute))
	ctx := context.Background()

	gen, _ := l.Generation(ctx)
	l.Set(ctx, gen, "a", []byte("1"))
	l.Set(ctx, gen, "b", []byte("2"))
	l.Invalidate(ctx)

	if _, ok := l.Get(ctx, "a"); ok {
		t.Fatal("expected a cleared")
	}
	if _, ok := l.Get(ctx, "b"); ok {
		t.Fatal("expected b cleared")
	}
}

func TestLocal_DropsWriteFromOlderGeneration(t *testing.T) {
	l := NewLocal(New(time.Minute))
	ctx := context.Background()

	before, _ := l.Generation(ctx)
	l.Invalidate(ctx)
	l.Set(ctx, before, "product:p1", []byte(`{"stock":50}`))

	if v, ok := l.Get(ctx, "product:p1"); ok {
		t.Fatalf("expected stale write dropped, got %q", v)
	}

	now, _ := l.Generation(ctx)
	if now == before {
		t.Fatal("invalidate must advance the generation")
	}
	l.Set(ctx, now, "product:p1", []byte(`{"stock":47}`))
	if v, ok := l.Get(ctx, "product:p1"); !ok || string(v) != `{"stock":47}` {
		t.Fatalf("expected current write kept, got %q %v", v, ok)
	}
}

func TestGuard_AcquireRelease(t *testing.T) {
	g := NewGuard(New(time.Minute))
	ctx := context.Background()

	ok, _ := g.Acquire(ctx, "order:idem:u1:k1", time.Minute)
	if !ok {
		t.Fatal("expected acquire")
	}
	ok, _ = g.Acquire(ctx, "order:idem:u1:k1", time.Minute)
	if ok {
		t.Fatal("expected duplicate to be rejected")
	}

	_ = g.Release(ctx, "order:idem:u1:k1")
	ok, _ = g.Acquire(ctx, "order:idem:u1:k1", time.Minute)
	if !ok {
		t.Fatal("expected acquire after release")
	}
}
