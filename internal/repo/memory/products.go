package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/storefront/internal/domain/product"
)

func (s *Store) ListProducts(_ context.Context, filter product.ListFilter) ([]product.Product, error) {
	s.mu.RLock()
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sortProducts(out)
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) InsertProducts(_ context.Context, products []product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

// same order as the SQL listing: created_at, then id
func sortProducts(ps []product.Product) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
