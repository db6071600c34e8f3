package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 2, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	err := b.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected fail-fast ErrOpen without calling fn, got err=%v called=%v", err, called)
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Cooldown: time.Second})
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Do(context.Background(), fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open")
	}

	now = now.Add(2 * time.Second)

	if err := b.Do(context.Background(), ok); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful trial, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Cooldown: time.Second})
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Do(context.Background(), fail)
	now = now.Add(2 * time.Second)
	_ = b.Do(context.Background(), fail)

	if b.State() != StateOpen {
		t.Fatalf("expected reopen, got %s", b.State())
	}
}

func TestBreaker_EnforcesTimeout(t *testing.T) {
	b := New(Config{Timeout: 20 * time.Millisecond})

	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
