package products

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/delifood/delifood/internal/platform/db"
	"github.com/delifood/delifood/internal/shared"
)

const (
	categoryColumns = `id, name, description, created_at, updated_at`
	tagColumns      = `id, value, created_at`
)

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanTag(row pgx.Row) (Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.Value, &t.CreatedAt)
	return t, err
}

func collect[T any](rows pgx.Rows, err error, scan func(pgx.Row) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PGRepository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	created, err := scanCategory(r.db.QueryRow(ctx,
		`INSERT INTO categories (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING `+categoryColumns,
		c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt))
	return created, db.MapError("categories", err)
}

func (r *PGRepository) GetCategory(ctx context.Context, id string) (Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	return c, db.MapError("categories", err)
}

func (r *PGRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	return collect(rows, err, scanCategory)
}

// CategoriesByIDs returns the categories matching ids; unknown ids are skipped.
func (r *PGRepository) CategoriesByIDs(ctx context.Context, ids []string) ([]Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ANY($1)`, ids)
	return collect(rows, err, scanCategory)
}

func (r *PGRepository) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `UPDATE categories SET
	name = COALESCE($2, name),
	description = COALESCE($3, description),
	updated_at = now()
WHERE id = $1 RETURNING `+categoryColumns, id, patch.Name, patch.Description))
	return c, db.MapError("categories", err)
}

// DeleteCategory removes a category; product links cascade.
func (r *PGRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "categories", id)
}

func (r *PGRepository) CreateTag(ctx context.Context, t Tag) (Tag, error) {
	created, err := scanTag(r.db.QueryRow(ctx,
		`INSERT INTO tags (id, value, created_at) VALUES ($1, $2, $3) RETURNING `+tagColumns,
		t.ID, t.Value, t.CreatedAt))
	return created, db.MapError("tags", err)
}

func (r *PGRepository) GetTag(ctx context.Context, id string) (Tag, error) {
	t, err := scanTag(r.db.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
	return t, db.MapError("tags", err)
}

func (r *PGRepository) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY value`)
	return collect(rows, err, scanTag)
}

// TagsByIDs returns the tags matching ids; unknown ids are skipped.
func (r *PGRepository) TagsByIDs(ctx context.Context, ids []string) ([]Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ANY($1)`, ids)
	return collect(rows, err, scanTag)
}

func (r *PGRepository) UpdateTag(ctx context.Context, id, value string) (Tag, error) {
	t, err := scanTag(r.db.QueryRow(ctx, `UPDATE tags SET value = $2 WHERE id = $1 RETURNING `+tagColumns, id, value))
	return t, db.MapError("tags", err)
}

// DeleteTag removes a tag; product links cascade.
func (r *PGRepository) DeleteTag(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "tags", id)
}

// SetProductCategories replaces the category links of a product.
func (r *PGRepository) SetProductCategories(ctx context.Context, productID string, categoryIDs []string) error {
	return r.replaceLinks(ctx, "product_categories", "category_id", productID, categoryIDs)
}

// SetProductTags replaces the tag links of a product.
func (r *PGRepository) SetProductTags(ctx context.Context, productID string, tagIDs []string) error {
	return r.replaceLinks(ctx, "product_tags", "tag_id", productID, tagIDs)
}

// replaceLinks rewrites every link row of productID inside one transaction
// and bumps the product's updated_at. table and column are constants.
func (r *PGRepository) replaceLinks(ctx context.Context, table, column, productID string, ids []string) error {
	return db.WithTx(ctx, r.tx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE products SET updated_at = now() WHERE id = $1`, productID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("products: %w", shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE product_id = $1`, productID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO `+table+` (product_id, `+column+`) SELECT $1, unnest($2::text[])`,
			productID, ids)
		return db.MapError(table, err)
	})
}

func (r *PGRepository) deleteByID(ctx context.Context, table, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", table, shared.ErrNotFound)
	}
	return nil
}

var _ TaxonomyRepository = (*PGRepository)(nil)
