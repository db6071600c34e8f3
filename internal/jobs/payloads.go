package jobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderConfirmationPayload is enqueued in the same transaction as the order.
// Keep payload small; the notifier only needs who/what/how much.
type OrderConfirmationPayload struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	Email       string          `json:"email,omitempty"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"itemCount"`
	RequestedAt time.Time       `json:"requestedAt"`
	RequestID   string          `json:"requestId,omitempty"`
}

// ConfirmationKey is the idempotency key for an order's confirmation job.
func ConfirmationKey(orderID string) string {
	return "order:confirm:" + orderID
}
