package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTimeout           = errors.New("order placement timed out")
	ErrDuplicateRequest  = errors.New("duplicate order request")
	ErrPersistence       = errors.New("order persistence failure")
	ErrNotFound          = errors.New("order not found")
)

// ProductNotFoundError names the first requested product that does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

type InsufficientStockError struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []LineItem      `json:"items"`
}

// LineItem fixes the unit price at purchase time so later price changes do not rewrite history.
type LineItem struct {
	ID          string           `json:"id"`
	OrderID     string           `json:"orderId"`
	ProductID   string           `json:"productId"`
	Quantity    int              `json:"quantity"`
	PriceAtTime decimal.Decimal  `json:"price"`
	Product     *product.Product `json:"product,omitempty"`
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.PriceAtTime.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type ItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=10000"`
}

type CreateOrderRequest struct {
	Items []ItemRequest `json:"items" binding:"max=100,dive"`
}

// New assembles an order from priced line items and computes the total.
func New(userID string, lines []LineItem) Order {
	o := Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Items:     make([]LineItem, 0, len(lines)),
	}

	for _, li := range lines {
		li.ID = uuid.NewString()
		li.OrderID = o.ID
		o.Items = append(o.Items, li)
	}

	o.Total = SumLines(o.Items)

	return o
}

func SumLines(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range lines {
		total = total.Add(li.LineTotal())
	}
	return total
}
