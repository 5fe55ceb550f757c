package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delifood/delifood/internal/shared"
)

// TaxonomyRepository persists categories, tags and their product links.
type TaxonomyRepository interface {
	CreateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CategoriesByIDs(ctx context.Context, ids []string) ([]Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateTag(ctx context.Context, t Tag) (Tag, error)
	GetTag(ctx context.Context, id string) (Tag, error)
	ListTags(ctx context.Context) ([]Tag, error)
	TagsByIDs(ctx context.Context, ids []string) ([]Tag, error)
	UpdateTag(ctx context.Context, id, value string) (Tag, error)
	DeleteTag(ctx context.Context, id string) error

	SetProductCategories(ctx context.Context, productID string, categoryIDs []string) error
	SetProductTags(ctx context.Context, productID string, tagIDs []string) error
}

// Taxonomy manages categories and tags and attaches them to products.
// Links are not announced; replicas only carry what carts price.
type Taxonomy struct {
	repo     TaxonomyRepository
	products Repository
	now      func() time.Time
}

// NewTaxonomy constructs a Taxonomy.
func NewTaxonomy(repo TaxonomyRepository, products Repository) *Taxonomy {
	return &Taxonomy{repo: repo, products: products, now: time.Now}
}

func (t *Taxonomy) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, shared.Invalid("category name required")
	}
	now := t.now().UTC()
	return t.repo.CreateCategory(ctx, Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (t *Taxonomy) GetCategory(ctx context.Context, id string) (Category, error) {
	return t.repo.GetCategory(ctx, id)
}

func (t *Taxonomy) ListCategories(ctx context.Context) ([]Category, error) {
	return t.repo.ListCategories(ctx)
}

func (t *Taxonomy) PatchCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	if patch == (CategoryPatch{}) {
		return Category{}, shared.Invalid("nothing to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Category{}, shared.Invalid("category name required")
		}
		patch.Name = &name
	}
	return t.repo.UpdateCategory(ctx, id, patch)
}

func (t *Taxonomy) DeleteCategory(ctx context.Context, id string) error {
	return t.repo.DeleteCategory(ctx, id)
}

func (t *Taxonomy) CreateTag(ctx context.Context, value string) (Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Tag{}, shared.Invalid("tag value required")
	}
	return t.repo.CreateTag(ctx, Tag{ID: uuid.NewString(), Value: value, CreatedAt: t.now().UTC()})
}

func (t *Taxonomy) GetTag(ctx context.Context, id string) (Tag, error) {
	return t.repo.GetTag(ctx, id)
}

func (t *Taxonomy) ListTags(ctx context.Context) ([]Tag, error) {
	return t.repo.ListTags(ctx)
}

func (t *Taxonomy) PatchTag(ctx context.Context, id, value string) (Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Tag{}, shared.Invalid("tag value required")
	}
	return t.repo.UpdateTag(ctx, id, value)
}

func (t *Taxonomy) DeleteTag(ctx context.Context, id string) error {
	return t.repo.DeleteTag(ctx, id)
}

// PutProductCategories replaces the categories of a product. Duplicate ids
// and ids that reference no category are unprocessable.
func (t *Taxonomy) PutProductCategories(ctx context.Context, productID string, categoryIDs []string) (Product, error) {
	if hasDuplicates(categoryIDs) {
		return Product{}, shared.Unprocessable("the array contains duplicate categories")
	}
	if _, err := t.products.Get(ctx, productID); err != nil {
		return Product{}, err
	}
	found, err := t.repo.CategoriesByIDs(ctx, categoryIDs)
	if err != nil {
		return Product{}, err
	}
	if len(found) != len(categoryIDs) {
		return Product{}, shared.Unprocessable("one of the categories does not exist")
	}
	if err := t.repo.SetProductCategories(ctx, productID, categoryIDs); err != nil {
		return Product{}, err
	}
	return t.products.Get(ctx, productID)
}

// PutProductTags replaces the tags of a product under the same rules as
// PutProductCategories.
func (t *Taxonomy) PutProductTags(ctx context.Context, productID string, tagIDs []string) (Product, error) {
	if hasDuplicates(tagIDs) {
		return Product{}, shared.Unprocessable("the array contains duplicate tags")
	}
	if _, err := t.products.Get(ctx, productID); err != nil {
		return Product{}, err
	}
	found, err := t.repo.TagsByIDs(ctx, tagIDs)
	if err != nil {
		return Product{}, err
	}
	if len(found) != len(tagIDs) {
		return Product{}, shared.Unprocessable("one of the tags does not exist")
	}
	if err := t.repo.SetProductTags(ctx, productID, tagIDs); err != nil {
		return Product{}, err
	}
	return t.products.Get(ctx, productID)
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
