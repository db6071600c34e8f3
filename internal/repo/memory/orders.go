package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/orders"
)

// WithinTx serializes order transactions and stages every write; nothing is
// visible to readers until fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSem }()

	tx := &memTx{
		store: s,
		stock: make(map[string]int),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	// a transaction whose deadline passed must not commit
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

type memTx struct {
	store  *Store
	stock  map[string]int // staged stock levels
	orders []order.Order
	jobs   []job.Job
}

func (t *memTx) LockProducts(ctx context.Context, ids []string) (map[string]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	out := make(map[string]product.Product, len(ids))
	for _, id := range ids {
		p, ok := t.store.products[id]
		if !ok {
			continue
		}
		if staged, ok := t.stock[id]; ok {
			p.Stock = staged
		}
		out[id] = p
	}
	return out, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items := make([]order.LineItem, len(o.Items))
	for i, li := range o.Items {
		li.Product = nil
		items[i] = li
	}
	o.Items = items

	t.orders = append(t.orders, o)
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cur, ok := t.stock[productID]
	if !ok {
		t.store.mu.RLock()
		p, exists := t.store.products[productID]
		t.store.mu.RUnlock()

		if !exists {
			return &order.ProductNotFoundError{ProductID: productID}
		}
		cur = p.Stock
	}

	if cur < quantity {
		return &order.InsufficientStockError{ProductID: productID, Available: cur, Requested: quantity}
	}

	t.stock[productID] = cur - quantity
	return nil
}

func (t *memTx) EnqueueJob(ctx context.Context, req job.CreateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.jobs = append(t.jobs, job.New(req))
	return nil
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, stock := range t.stock {
		p := s.products[id]
		p.Stock = stock
		p.UpdatedAt = now
		s.products[id] = p
	}

	s.orders = append(s.orders, t.orders...)

	for _, j := range t.jobs {
		if j.IdempotencyKey != nil && s.hasJobKeyLocked(*j.IdempotencyKey) {
			continue
		}
		s.jobs[j.ID] = j
	}
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, s.withProductsLocked(o))
		}
	}

	// same ordering as the postgres repo: created_at DESC, id ASC
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetForUser(_ context.Context, userID, orderID string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == orderID && o.UserID == userID {
			return s.withProductsLocked(o), nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (s *Store) withProductsLocked(o order.Order) order.Order {
	items := make([]order.LineItem, len(o.Items))
	for i, li := range o.Items {
		if p, ok := s.products[li.ProductID]; ok {
			li.Product = &p
		}
		items[i] = li
	}
	o.Items = items
	return o
}
