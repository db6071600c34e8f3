package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/domain/user"
)

// Store is an in-process implementation of every repository the services use.
// It backs STORAGE_DRIVER=memory and the service tests.
type Store struct {
	mu sync.RWMutex

	// held for the whole of an order transaction; a channel so acquisition honours ctx
	txSem chan struct{}

	users      map[string]user.User // by id
	sessions   map[string]auth.Session
	products   map[string]product.Product
	orders     []order.Order // insertion order, items without product details
	jobs       map[string]job.Job
	deliveries map[string]delivery // by order id
}

func New() *Store {
	return &Store{
		txSem:      make(chan struct{}, 1),
		users:      make(map[string]user.User),
		sessions:   make(map[string]auth.Session),
		products:   make(map[string]product.Product),
		jobs:       make(map[string]job.Job),
		deliveries: make(map[string]delivery),
	}
}

// Ping satisfies readiness checks.
func (s *Store) Ping(context.Context) error { return nil }
