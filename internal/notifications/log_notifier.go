package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier stands in for an email provider: it logs the confirmation.
// NOTIFIER_SLEEP_MS and NOTIFIER_FAIL=1 simulate a slow or failing provider.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendOrderConfirmation(ctx context.Context, in SendOrderConfirmationInput) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	n.log.InfoContext(ctx, "notification.order_confirmation",
		"email", in.Email,
		"name", in.Name,
		"order_id", in.OrderID,
		"total", in.Total.StringFixed(2),
		"items", in.ItemCount,
	)
	return nil
}
