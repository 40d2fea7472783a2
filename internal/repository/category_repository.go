package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tracklight/tracklight-api/internal/models"
)

const categoryColumns = `id, name, color, priority, parent_id, rules, created_at, updated_at`

// CategoryRepository persists categories and their classification rules.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs a category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns every category in classification order: priority
// descending, ties broken by name ascending.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	const query = `SELECT ` + categoryColumns + ` FROM categories ORDER BY priority DESC, name ASC`
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// GetByID fetches one category.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := r.db.GetContext(ctx, &category, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// Create inserts a category, minting an id when absent.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now
	const query = `INSERT INTO categories (` + categoryColumns + `)
VALUES (:id, :name, :color, :priority, :parent_id, :rules, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update rewrites a category's mutable fields, rules included.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	category.UpdatedAt = time.Now().UTC()
	const query = `UPDATE categories SET name = :name, color = :color, priority = :priority, parent_id = :parent_id, rules = :rules, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("update category %s: %w", category.ID, err)
	}
	return nil
}

// Delete removes a category. Events referencing it are set-null by the
// store's foreign key.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

// CountChildren reports how many categories point at the given parent.
func (r *CategoryRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM categories WHERE parent_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count children of category %s: %w", id, err)
	}
	return count, nil
}
