package notifications

import (
	"context"

	"github.com/geocoder89/storefront/internal/breaker"
)

// ProtectedNotifier puts a circuit breaker and per-send timeout in front of a provider.
type ProtectedNotifier struct {
	inner Notifier
	cb    *breaker.Breaker
}

func NewProtectedNotifier(inner Notifier, cfg breaker.Config) *ProtectedNotifier {
	return &ProtectedNotifier{inner: inner, cb: breaker.New(cfg)}
}

func (n *ProtectedNotifier) SendOrderConfirmation(ctx context.Context, input SendOrderConfirmationInput) error {
	return n.cb.Do(ctx, func(ctx context.Context) error {
		return n.inner.SendOrderConfirmation(ctx, input)
	})
}
