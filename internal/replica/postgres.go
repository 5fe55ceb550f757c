package replica

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delifood/delifood/internal/platform/db"
)

// PGStore implements UserStore and ProductStore on PostgreSQL.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

func (s *PGStore) InsertUser(ctx context.Context, u User) error {
	_, err := s.db.Exec(ctx, `INSERT INTO replica_users (id, email, updated_at) VALUES ($1, $2, $3)`,
		u.ID, u.Email, u.UpdatedAt)
	return db.MapError("replica_users", err)
}

func (s *PGStore) UpsertUser(ctx context.Context, u User) (bool, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO replica_users (id, email, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
WHERE replica_users.updated_at <= EXCLUDED.updated_at`, u.ID, u.Email, u.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert user replica: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, `SELECT id, email, updated_at FROM replica_users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.UpdatedAt)
	return u, db.MapError("replica_users", err)
}

func (s *PGStore) InsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.Exec(ctx, `INSERT INTO replica_products (id, name, sku, price, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.SKU, p.Price, p.UpdatedAt)
	return db.MapError("replica_products", err)
}

func (s *PGStore) UpsertProduct(ctx context.Context, p Product) (bool, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO replica_products (id, name, sku, price, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sku = EXCLUDED.sku, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
WHERE replica_products.updated_at <= EXCLUDED.updated_at`, p.ID, p.Name, p.SKU, p.Price, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert product replica: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.db.QueryRow(ctx, `SELECT id, name, sku, price, updated_at FROM replica_products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.UpdatedAt)
	return p, db.MapError("replica_products", err)
}

var (
	_ UserStore    = (*PGStore)(nil)
	_ ProductStore = (*PGStore)(nil)
)
