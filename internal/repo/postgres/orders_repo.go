package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrdersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	jobs *JobsRepo
}

func NewOrdersRepo(pool *pgxpool.Pool, prom *observability.Prom, jobs *JobsRepo) *OrdersRepo {
	return &OrdersRepo{pool: pool, prom: prom, jobs: jobs}
}

func (r *OrdersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken by
// LockProducts serialize concurrent orders on the same products.
func (r *OrdersRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &orderTx{tx: tx, repo: r}); err != nil {
		return err
	}

	return r.observe("orders.commit", func() error {
		return tx.Commit(ctx)
	})
}

type orderTx struct {
	tx   pgx.Tx
	repo *OrdersRepo
}

func (t *orderTx) LockProducts(ctx context.Context, ids []string) (map[string]product.Product, error) {
	out := make(map[string]product.Product, len(ids))

	err := t.repo.observe("orders.lock_products", func() error {
		rows, err := t.tx.Query(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE id = ANY($1::uuid[])
			ORDER BY id
			FOR UPDATE
		`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p product.Product
			if err := scanProduct(rows, &p); err != nil {
				return err
			}
			out[p.ID] = p
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o order.Order) error {
	return t.repo.observe("orders.insert", func() error {
		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO orders (id, user_id, total, created_at)
			VALUES ($1,$2,$3,$4)
		`, o.ID, o.UserID, o.Total, o.CreatedAt)

		for i, li := range o.Items {
			batch.Queue(`
				INSERT INTO order_items (id, order_id, product_id, quantity, price, position)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, li.ID, o.ID, li.ProductID, li.Quantity, li.PriceAtTime, i)
		}

		return t.tx.SendBatch(ctx, batch).Close()
	})
}

// DecrementStock only succeeds while stock covers the quantity, so a bug that
// skipped validation still cannot drive stock negative.
func (t *orderTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	var remaining int

	err := t.repo.observe("products.decrement_stock", func() error {
		return t.tx.QueryRow(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
			RETURNING stock
		`, productID, quantity).Scan(&remaining)
	})

	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var available int
	if qerr := t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available); qerr != nil {
		if errors.Is(qerr, pgx.ErrNoRows) {
			return &order.ProductNotFoundError{ProductID: productID}
		}
		return qerr
	}

	return &order.InsufficientStockError{ProductID: productID, Available: available, Requested: quantity}
}

func (t *orderTx) EnqueueJob(ctx context.Context, req job.CreateRequest) error {
	_, err := t.repo.jobs.CreateTx(ctx, t.tx, req)
	return err
}

const orderHistoryQuery = `
	SELECT o.id, o.user_id, o.total, o.created_at,
	       oi.id, oi.product_id, oi.quantity, oi.price,
	       p.id, p.name, p.description, p.price, p.image, p.category, p.stock, p.created_at, p.updated_at
	FROM orders o
	JOIN order_items oi ON oi.order_id = o.id
	JOIN products p ON p.id = oi.product_id
`

func (r *OrdersRepo) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	var out []order.Order

	err := r.observe("orders.list_by_user", func() error {
		rows, err := r.pool.Query(ctx, orderHistoryQuery+`
			WHERE o.user_id = $1
			ORDER BY o.created_at DESC, o.id, oi.position
		`, userID)
		if err != nil {
			return err
		}
		out, err = collectOrders(rows)
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrdersRepo) GetForUser(ctx context.Context, userID, orderID string) (order.Order, error) {
	var out []order.Order

	err := r.observe("orders.get_for_user", func() error {
		rows, err := r.pool.Query(ctx, orderHistoryQuery+`
			WHERE o.user_id = $1 AND o.id = $2
			ORDER BY oi.position
		`, userID, orderID)
		if err != nil {
			return err
		}
		out, err = collectOrders(rows)
		return err
	})

	if err != nil {
		return order.Order{}, err
	}
	if len(out) == 0 {
		return order.Order{}, order.ErrNotFound
	}
	return out[0], nil
}

// collectOrders folds the joined rows back into orders. Rows must arrive grouped by order.
func collectOrders(rows pgx.Rows) ([]order.Order, error) {
	defer rows.Close()

	out := make([]order.Order, 0)

	for rows.Next() {
		var (
			o  order.Order
			li order.LineItem
			p  product.Product
		)

		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Total, &o.CreatedAt,
			&li.ID, &li.ProductID, &li.Quantity, &li.PriceAtTime,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		li.OrderID = o.ID
		li.Product = &p

		if n := len(out); n > 0 && out[n-1].ID == o.ID {
			out[n-1].Items = append(out[n-1].Items, li)
			continue
		}

		o.Items = []order.LineItem{li}
		out = append(out, o)
	}

	return out, rows.Err()
}
