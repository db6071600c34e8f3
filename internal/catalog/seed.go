package catalog

import (
	"context"
	"time"

	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
)

type Seeder interface {
	CountProducts(ctx context.Context) (int, error)
	InsertProducts(ctx context.Context, products []product.Product) error
}

var defaultProducts = []product.NewProductInput{
	{
		Name:        "Wireless Bluetooth Headphones",
		Description: "Premium quality wireless headphones with noise cancellation and 30-hour battery life.",
		Price:       decimal.RequireFromString("199.99"),
		Image:       "https://images.pexels.com/photos/3394650/pexels-photo-3394650.jpeg",
		Category:    "Electronics",
		Stock:       50,
	},
	{
		Name:        "Smartphone Stand",
		Description: "Adjustable aluminum smartphone stand compatible with all devices.",
		Price:       decimal.RequireFromString("24.99"),
		Image:       "https://images.pexels.com/photos/1334597/pexels-photo-1334597.jpeg",
		Category:    "Accessories",
		Stock:       100,
	},
	{
		Name:        "Laptop Backpack",
		Description: "Water-resistant laptop backpack with multiple compartments and USB charging port.",
		Price:       decimal.RequireFromString("89.99"),
		Image:       "https://images.pexels.com/photos/2905238/pexels-photo-2905238.jpeg",
		Category:    "Bags",
		Stock:       30,
	},
	{
		Name:        "Wireless Mouse",
		Description: "Ergonomic wireless mouse with precision sensor and long battery life.",
		Price:       decimal.RequireFromString("39.99"),
		Image:       "https://images.pexels.com/photos/2115256/pexels-photo-2115256.jpeg",
		Category:    "Electronics",
		Stock:       75,
	},
	{
		Name:        "Coffee Mug",
		Description: "Ceramic coffee mug with heat-resistant design and comfortable handle.",
		Price:       decimal.RequireFromString("15.99"),
		Image:       "https://images.pexels.com/photos/302899/pexels-photo-302899.jpeg",
		Category:    "Home",
		Stock:       200,
	},
	{
		Name:        "Desk Lamp",
		Description: "LED desk lamp with adjustable brightness and USB charging port.",
		Price:       decimal.RequireFromString("49.99"),
		Image:       "https://images.pexels.com/photos/1112598/pexels-photo-1112598.jpeg",
		Category:    "Home",
		Stock:       40,
	},
}

// DefaultProducts returns the starter catalog with fresh ids. created_at is
// staggered so listings come back in the order above.
func DefaultProducts() []product.Product {
	base := time.Now().UTC()
	out := make([]product.Product, 0, len(defaultProducts))

	for i, in := range defaultProducts {
		p := product.New(in)
		p.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		p.UpdatedAt = p.CreatedAt
		out = append(out, p)
	}
	return out
}

// SeedIfEmpty loads the starter catalog into an empty store. It reports whether it seeded.
func SeedIfEmpty(ctx context.Context, s Seeder) (bool, error) {
	n, err := s.CountProducts(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	return true, s.InsertProducts(ctx, DefaultProducts())
}
