package products

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delifood/delifood/internal/platform/db"
	"github.com/delifood/delifood/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
	tx db.TxBeginner
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, tx: pool}
}

// productColumns selects from an alias p and resolves the link tables.
const productColumns = `p.id, p.name, p.sku, p.description, p.price,
	COALESCE((SELECT array_agg(category_id ORDER BY category_id) FROM product_categories WHERE product_id = p.id), '{}'),
	COALESCE((SELECT array_agg(tag_id ORDER BY tag_id) FROM product_tags WHERE product_id = p.id), '{}'),
	p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.CategoryIDs, &p.TagIDs, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepository) Create(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.db.QueryRow(ctx,
		`WITH p AS (INSERT INTO products (id, name, sku, description, price, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING *)
SELECT `+productColumns+` FROM p`,
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.CreatedAt, p.UpdatedAt))
	return created, db.MapError("products", err)
}

func (r *PGRepository) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	return p, db.MapError("products", err)
}

func (r *PGRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products p ORDER BY p.name, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepository) Update(ctx context.Context, id string, patch Patch) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `WITH p AS (UPDATE products SET
	name = COALESCE($2, name),
	sku = COALESCE($3, sku),
	description = COALESCE($4, description),
	price = COALESCE($5, price),
	updated_at = now()
WHERE id = $1 RETURNING *)
SELECT `+productColumns+` FROM p`, id, patch.Name, patch.SKU, patch.Description, patch.Price))
	return p, db.MapError("products", err)
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: %w", shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
