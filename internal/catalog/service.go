package catalog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/utils"
)

type ProductStore interface {
	ListProducts(ctx context.Context, filter product.ListFilter) ([]product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
}

// Cache holds serialized catalog reads. Invalidate drops every entry; it is
// called after any stock change. Set must discard val when gen is no longer
// the current generation.
type Cache interface {
	Generation(ctx context.Context) (string, bool)
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, gen, key string, val []byte)
	Invalidate(ctx context.Context)
}

type Service struct {
	store ProductStore
	cache Cache
	prom  *observability.Prom
	log   *slog.Logger
}

// NewService wires a read-through cache in front of store. cache may be nil.
func NewService(store ProductStore, cache Cache, prom *observability.Prom, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, cache: cache, prom: prom, log: log}
}

func (s *Service) ListProducts(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	key := utils.BuildProductsListCacheKey(filter.Category, filter.Search)

	var out []product.Product
	if s.lookup(ctx, key, &out) {
		return out, nil
	}

	gen, cacheable := s.generation(ctx)

	out, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.remember(ctx, gen, key, out)
	}
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (product.Product, error) {
	key := utils.BuildProductCacheKey(id)

	var p product.Product
	if s.lookup(ctx, key, &p) {
		return p, nil
	}

	gen, cacheable := s.generation(ctx)

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}

	if cacheable {
		s.remember(ctx, gen, key, p)
	}
	return p, nil
}

func (s *Service) Invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Service) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}

	raw, ok := s.cache.Get(ctx, key)
	if ok {
		if err := json.Unmarshal(raw, dst); err != nil {
			s.log.WarnContext(ctx, "catalog cache entry unreadable", "key", key, "err", err)
			ok = false
		}
	}

	if s.prom != nil {
		s.prom.ObserveCache(ok)
	}
	return ok
}

// generation must be read before the store so a concurrent Invalidate
// makes the eventual Set a no-op.
func (s *Service) generation(ctx context.Context) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	return s.cache.Generation(ctx)
}

func (s *Service) remember(ctx context.Context, gen, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.cache.Set(ctx, gen, key, raw)
}
