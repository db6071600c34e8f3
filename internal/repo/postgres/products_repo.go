package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id, name, description, price, image, category, stock, created_at, updated_at`

type ProductsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProductsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProductsRepo {
	return &ProductsRepo{pool: pool, prom: prom}
}

func (r *ProductsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *product.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Image,
		&p.Category,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// ListProducts matches category exactly and search as a case-sensitive substring
// of name or description. strpos is used instead of LIKE so % and _ in the
// search term are literal.
func (r *ProductsRepo) ListProducts(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	out := make([]product.Product, 0)

	err := r.observe("products.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE ($1::text IS NULL OR category = $1)
			  AND ($2::text IS NULL OR strpos(name, $2) > 0 OR strpos(description, $2) > 0)
			ORDER BY created_at ASC, id ASC
		`, filter.Category, filter.Search)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p product.Product
			if err := scanProduct(rows, &p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProductsRepo) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var p product.Product

	err := r.observe("products.get_by_id", func() error {
		return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), &p)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, err
	}
	return p, nil
}

func (r *ProductsRepo) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := r.observe("products.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	})
	return n, err
}

func (r *ProductsRepo) InsertProducts(ctx context.Context, products []product.Product) error {
	return r.observe("products.insert_many", func() error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(`
				INSERT INTO products (`+productColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Stock, p.CreatedAt, p.UpdatedAt)
		}
		return r.pool.SendBatch(ctx, batch).Close()
	})
}
