package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/jobs"
	"github.com/geocoder89/storefront/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tx is the unit of work the placement runs inside. Implementations must
// hold row locks (or equivalent) on every product returned by LockProducts
// until the transaction ends.
type Tx interface {
	LockProducts(ctx context.Context, ids []string) (map[string]product.Product, error)
	InsertOrder(ctx context.Context, o order.Order) error
	// DecrementStock is a compare-and-swap: it fails with *order.InsufficientStockError
	// instead of letting stock go negative.
	DecrementStock(ctx context.Context, productID string, quantity int) error
	EnqueueJob(ctx context.Context, req job.CreateRequest) error
}

type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	GetForUser(ctx context.Context, userID, orderID string) (order.Order, error)
}

type CatalogInvalidator interface {
	Invalidate(ctx context.Context)
}

type IdempotencyGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	Timeout        time.Duration
	IdempotencyTTL time.Duration
}

type Service struct {
	store   Store
	catalog CatalogInvalidator
	idem    IdempotencyGuard
	prom    *observability.Prom
	log     *slog.Logger
	cfg     Config
	tracer  trace.Tracer
}

func NewService(store Store, catalog CatalogInvalidator, idem IdempotencyGuard, prom *observability.Prom, log *slog.Logger, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:   store,
		catalog: catalog,
		idem:    idem,
		prom:    prom,
		log:     log,
		cfg:     cfg,
		tracer:  otel.Tracer("storefront/orders"),
	}
}

type PlaceInput struct {
	UserID         string
	Items          []order.ItemRequest
	IdempotencyKey string
	RequestID      string
}

func (s *Service) PlaceOrder(ctx context.Context, in PlaceInput) (placed order.Order, err error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "orders.place", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.lines", len(in.Items)),
	))

	defer func() {
		result := resultLabel(err)
		if s.prom != nil {
			s.prom.ObserveOrder(result, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
	}()

	if len(in.Items) == 0 {
		return order.Order{}, order.ErrEmptyOrder
	}

	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return order.Order{}, order.ErrInvalidQuantity
		}
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		key := "order:idem:" + in.UserID + ":" + in.IdempotencyKey

		ok, gerr := s.idem.Acquire(ctx, key, s.cfg.IdempotencyTTL)
		switch {
		case gerr != nil:
			// guard backend down: accept the order rather than block checkout
			s.log.WarnContext(ctx, "idempotency guard unavailable", "err", gerr, "user_id", in.UserID)
		case !ok:
			return order.Order{}, order.ErrDuplicateRequest
		default:
			defer func() {
				if err != nil {
					if rerr := s.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
						s.log.WarnContext(ctx, "idempotency release failed", "err", rerr, "key", key)
					}
				}
			}()
		}
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err = s.store.WithinTx(tctx, func(txCtx context.Context, tx Tx) error {
		o, perr := place(txCtx, tx, in)
		if perr != nil {
			return perr
		}
		placed = o
		return nil
	})

	if err != nil {
		err = s.classify(tctx, err)
		s.log.InfoContext(ctx, "order rejected", "user_id", in.UserID, "result", resultLabel(err), "err", err)
		return order.Order{}, err
	}

	if s.catalog != nil {
		s.catalog.Invalidate(context.WithoutCancel(ctx))
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	s.log.InfoContext(ctx, "order placed",
		"order_id", placed.ID,
		"user_id", placed.UserID,
		"total", placed.Total.StringFixed(2),
		"lines", len(placed.Items),
	)

	return placed, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrPersistence, err)
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.store.GetForUser(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.Order{}, err
		}
		return order.Order{}, fmt.Errorf("%w: %v", order.ErrPersistence, err)
	}
	return o, nil
}

func (s *Service) classify(tctx context.Context, err error) error {
	switch {
	case errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrEmptyOrder):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(tctx.Err(), context.DeadlineExceeded):
		return order.ErrTimeout
	default:
		return fmt.Errorf("%w: %v", order.ErrPersistence, err)
	}
}

// place runs inside the transaction. Products are locked in sorted id order so two
// orders touching the same products cannot deadlock; validation still walks the
// items in the order the client sent them.
func place(ctx context.Context, tx Tx, in PlaceInput) (order.Order, error) {
	products, err := tx.LockProducts(ctx, uniqueSortedIDs(in.Items))
	if err != nil {
		return order.Order{}, err
	}

	requested := make(map[string]int, len(products))
	lines := make([]order.LineItem, 0, len(in.Items))

	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return order.Order{}, &order.ProductNotFoundError{ProductID: it.ProductID}
		}

		requested[p.ID] += it.Quantity
		if p.Stock < requested[p.ID] {
			return order.Order{}, &order.InsufficientStockError{
				ProductID: p.ID,
				Available: p.Stock,
				Requested: requested[p.ID],
			}
		}

		lines = append(lines, order.LineItem{
			ProductID:   p.ID,
			Quantity:    it.Quantity,
			PriceAtTime: p.Price,
		})
	}

	o := order.New(in.UserID, lines)

	if err := tx.InsertOrder(ctx, o); err != nil {
		return order.Order{}, err
	}

	for _, li := range o.Items {
		if err := tx.DecrementStock(ctx, li.ProductID, li.Quantity); err != nil {
			return order.Order{}, err
		}
	}

	if err := enqueueConfirmation(ctx, tx, o, in.RequestID); err != nil {
		return order.Order{}, err
	}

	for i := range o.Items {
		p := products[o.Items[i].ProductID]
		p.Stock -= requested[p.ID]
		o.Items[i].Product = &p
	}

	return o, nil
}

func enqueueConfirmation(ctx context.Context, tx Tx, o order.Order, requestID string) error {
	raw, err := jobs.EncodePayload(jobs.TypeOrderConfirmation, jobs.OrderConfirmationPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Total:       o.Total,
		ItemCount:   len(o.Items),
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	})
	if err != nil {
		return err
	}

	key := jobs.ConfirmationKey(o.ID)
	uid := o.UserID

	return tx.EnqueueJob(ctx, job.CreateRequest{
		Type:           string(jobs.TypeOrderConfirmation),
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
		UserID:         &uid,
	})
}

func uniqueSortedIDs(items []order.ItemRequest) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))

	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	sort.Strings(ids)
	return ids
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, order.ErrEmptyOrder), errors.Is(err, order.ErrInvalidQuantity):
		return "invalid"
	case errors.Is(err, order.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, order.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, order.ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, order.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
