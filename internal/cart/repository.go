package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delifood/delifood/internal/platform/db"
	"github.com/delifood/delifood/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

const itemColumns = `user_id, product_id, quantity, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *PGRepository) AddItem(ctx context.Context, item Item) (Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING `+itemColumns, item.UserID, item.ProductID, item.Quantity, item.CreatedAt, item.UpdatedAt))
	return it, db.MapError("cart_items", err)
}

func (r *PGRepository) Items(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM cart_items WHERE user_id = $1 ORDER BY created_at, product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepository) SetQuantity(ctx context.Context, userID, productID string, qty int, at time.Time) (Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `UPDATE cart_items SET quantity = $3, updated_at = $4
WHERE user_id = $1 AND product_id = $2 RETURNING `+itemColumns, userID, productID, qty, at))
	return it, db.MapError("cart_items", err)
}

func (r *PGRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart_items: %w", shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
