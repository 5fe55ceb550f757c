package rbac

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

const permissionColumns = `id, name, value, created_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Value, &p.CreatedAt)
	return p, err
}

func collectPermissions(rows pgx.Rows, err error) ([]Permission, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a permission.
func (r *PGRepository) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO permissions (id, name, value, created_at) VALUES ($1, $2, $3, $4) RETURNING `+permissionColumns,
		p.ID, p.Name, p.Value, p.CreatedAt)
	created, err := scanPermission(row)
	return created, db.MapError("permissions", err)
}

// GetPermission fetches a permission by id.
func (r *PGRepository) GetPermission(ctx context.Context, id string) (Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	return p, db.MapError("permissions", err)
}

// ListPermissions returns all permissions ordered by value.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return collectPermissions(r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY value`))
}

// PermissionsByIDs returns the permissions matching ids; unknown ids are skipped.
func (r *PGRepository) PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectPermissions(r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = ANY($1)`, ids))
}

// UpdatePermission applies a partial update.
func (r *PGRepository) UpdatePermission(ctx context.Context, id string, patch PermissionPatch) (Permission, error) {
	row := r.db.QueryRow(ctx, `UPDATE permissions SET name = COALESCE($2, name), value = COALESCE($3, value) WHERE id = $1 RETURNING `+permissionColumns,
		id, patch.Name, patch.Value)
	p, err := scanPermission(row)
	return p, db.MapError("permissions", err)
}

// DeletePermission removes a permission; role links cascade.
func (r *PGRepository) DeletePermission(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permissions: %w", shared.ErrNotFound)
	}
	return nil
}

const roleSelect = `SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
	COALESCE(array_agg(rp.permission_id ORDER BY rp.permission_id) FILTER (WHERE rp.permission_id IS NOT NULL), '{}')
FROM roles r LEFT JOIN role_permissions rp ON rp.role_id = r.id`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.PermissionIDs)
	return role, err
}

func collectRoles(rows pgx.Rows, err error) ([]Role, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO roles (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		return Role{}, db.MapError("roles", err)
	}
	role.PermissionIDs = []string{}
	return role, nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id string) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, roleSelect+` WHERE r.id = $1 GROUP BY r.id`, id))
	return role, db.MapError("roles", err)
}

// GetRoleByName fetches a role by its unique name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, roleSelect+` WHERE r.name = $1 GROUP BY r.id`, name))
	return role, db.MapError("roles", err)
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	return collectRoles(r.db.Query(ctx, roleSelect+` GROUP BY r.id ORDER BY r.name`))
}

// RolesByIDs returns the roles matching ids; unknown ids are skipped.
func (r *PGRepository) RolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectRoles(r.db.Query(ctx, roleSelect+` WHERE r.id = ANY($1) GROUP BY r.id`, ids))
}

// UpdateRole applies a partial update.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, patch RolePatch) (Role, error) {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = now() WHERE id = $1`,
		id, patch.Name, patch.Description)
	if err != nil {
		return Role{}, db.MapError("roles", err)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	return r.GetRole(ctx, id)
}

// DeleteRole removes a role; permission and user links cascade.
func (r *PGRepository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	return nil
}

// SetRolePermissions replaces a role's permission links, attaching and
// detaching only the difference.
func (r *PGRepository) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return db.WithTx(ctx, r.tx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
		if err != nil {
			return err
		}
		existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		have := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			have[id] = struct{}{}
		}
		keep := make(map[string]struct{}, len(permissionIDs))
		for _, id := range permissionIDs {
			keep[id] = struct{}{}
			if _, ok := have[id]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, id); err != nil {
				return db.MapError("role_permissions", err)
			}
		}
		for id := range have {
			if _, ok := keep[id]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, id); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE roles SET updated_at = now() WHERE id = $1`, roleID)
		return err
	})
}

var _ Repository = (*PGRepository)(nil)
