package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun"
)

// BunCategoryRepository implements CategoryRepository using Bun ORM
type BunCategoryRepository struct {
	db *bun.DB
}

// NewBunCategoryRepository creates a new Bun-based category repository
func NewBunCategoryRepository(db *bun.DB) *BunCategoryRepository {
	return &BunCategoryRepository{db: db}
}

func (r *BunCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.NewSelect().Model(&categories).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *BunCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	category := new(models.Category)
	err := r.db.NewSelect().Model(category).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

// Create inserts a category
func (r *BunCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(category).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", category.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *BunCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	res, err := r.db.NewUpdate().
		Model(category).
		Column("name", "description", "color").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", category.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res, "category", category.ID)
}

// Delete removes a category; its feeds become uncategorized
func (r *BunCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*models.Category)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "category", id)
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
