package auth

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

const userSelect = `SELECT u.id, u.email, u.password_hash, u.created_at, u.updated_at,
	COALESCE(array_agg(ur.role_id ORDER BY ur.role_id) FILTER (WHERE ur.role_id IS NOT NULL), '{}')
FROM users u LEFT JOIN user_roles ur ON ur.user_id = u.id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.RoleIDs)
	return u, err
}

// CreateUser inserts the account and its role links in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, u User) (User, error) {
	err := db.WithTx(ctx, r.tx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt); err != nil {
			return db.MapError("users", err)
		}
		for _, roleID := range u.RoleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, u.ID, roleID); err != nil {
				return db.MapError("user_roles", err)
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// FindByEmail fetches a user by normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.email = $1 GROUP BY u.id`, email))
	return u, db.MapError("users", err)
}

// GetUser fetches a user by id.
func (r *PGRepository) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id))
	return u, db.MapError("users", err)
}

// ListUsers returns all users ordered by email.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, userSelect+` GROUP BY u.id ORDER BY u.email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser applies a partial update.
func (r *PGRepository) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email = COALESCE($2, email), password_hash = COALESCE($3, password_hash), updated_at = now() WHERE id = $1`,
		id, patch.Email, patch.PasswordHash)
	if err != nil {
		return User{}, db.MapError("users", err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	return r.GetUser(ctx, id)
}

// DeleteUser removes a user; role links cascade.
func (r *PGRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	return nil
}

// SetUserRoles replaces the role links of a user.
func (r *PGRepository) SetUserRoles(ctx context.Context, id string, roleIDs []string) error {
	return db.WithTx(ctx, r.tx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, id, roleID); err != nil {
				return db.MapError("user_roles", err)
			}
		}
		_, err := tx.Exec(ctx, `UPDATE users SET updated_at = now() WHERE id = $1`, id)
		return err
	})
}

var _ Repository = (*PGRepository)(nil)
