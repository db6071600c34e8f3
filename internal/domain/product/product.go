package product

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// the storefront client does arithmetic on price, so it must be a JSON number
	decimal.MarshalJSONWithoutQuotes = true
}

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Category *string
	Search   *string
}

// Matches applies the same semantics as the SQL list query: exact category,
// case-sensitive substring of name or description.
func (f ListFilter) Matches(p Product) bool {
	if f.Category != nil && p.Category != *f.Category {
		return false
	}

	if f.Search != nil {
		s := *f.Search
		if !strings.Contains(p.Name, s) && !strings.Contains(p.Description, s) {
			return false
		}
	}

	return true
}

type NewProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Category    string
	Stock       int
}

func New(in NewProductInput) Product {
	now := time.Now().UTC()

	return Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
		Category:    in.Category,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
