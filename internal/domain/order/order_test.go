package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNew_TotalIsSumOfLines(t *testing.T) {
	lines := []LineItem{
		{ProductID: "p1", Quantity: 3, PriceAtTime: decimal.RequireFromString("10.00")},
		{ProductID: "p2", Quantity: 2, PriceAtTime: decimal.RequireFromString("199.99")},
		{ProductID: "p3", Quantity: 7, PriceAtTime: decimal.RequireFromString("0.10")},
	}

	o := New("user-1", lines)

	want := decimal.RequireFromString("430.68")
	if !o.Total.Equal(want) {
		t.Fatalf("total = %s, want %s", o.Total, want)
	}

	if len(o.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(o.Items))
	}

	for _, li := range o.Items {
		if li.OrderID != o.ID || li.ID == "" {
			t.Fatalf("line item not attached to order: %+v", li)
		}
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	var err error = &InsufficientStockError{ProductID: "p1", Available: 2, Requested: 3}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStockError to match ErrInsufficientStock")
	}

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 2 {
		t.Fatalf("expected errors.As to recover details, got %+v", stockErr)
	}

	err = &ProductNotFoundError{ProductID: "p9"}
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ProductNotFoundError to match ErrProductNotFound")
	}
	if errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("ProductNotFoundError must not match ErrInsufficientStock")
	}
}
