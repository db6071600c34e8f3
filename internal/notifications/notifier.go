package notifications

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification send in progress")
)

type SendOrderConfirmationInput struct {
	Email     string
	Name      string
	OrderID   string
	Total     decimal.Decimal
	ItemCount int
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, input SendOrderConfirmationInput) error
}
