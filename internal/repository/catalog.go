package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, description, price, stock FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, price, stock FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	setStockSQL = `UPDATE products SET stock = $2 WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock`

	syncProductSequenceSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
		GREATEST((SELECT COALESCE(MAX(id), 0) FROM products), 1))`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns all products ordered by ID.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// DecrementStock removes qty units in a single conditional update. No
// affected rows means the product is missing or short on stock.
func (r *CatalogRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement stock of product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrInsufficientStock
	}
	return nil
}

// SetStock overwrites the stock count of a product.
func (r *CatalogRepository) SetStock(ctx context.Context, id int64, stock int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, setStockSQL, id, stock)
	if err != nil {
		return errors.Wrapf(err, "set stock of product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Upsert inserts the product or replaces the stored one with the same id.
func (r *CatalogRepository) Upsert(ctx context.Context, p catalog.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.Stock)
	if err != nil {
		return errors.Wrapf(err, "upsert product %d", p.ID)
	}
	return nil
}

// SyncSequence moves the id sequence past explicitly inserted ids.
func (r *CatalogRepository) SyncSequence(ctx context.Context) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, syncProductSequenceSQL); err != nil {
		return errors.Wrap(err, "sync product sequence")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p     catalog.Product
		stock int32
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &stock)
	p.Stock = int(stock)
	return p, err
}
