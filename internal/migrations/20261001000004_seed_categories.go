package migrations

import (
	"context"
	"fmt"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000004, down_20261001000004)
}

// DefaultCategories are created on a fresh database.
var DefaultCategories = []models.Category{
	{Name: "Technology", Description: "Technology news and updates", Color: "#6366f1"},
	{Name: "Business", Description: "Business and industry news", Color: "#0ea5e9"},
	{Name: "Finance", Description: "Financial markets and economy", Color: "#10b981"},
	{Name: "Industry News", Description: "Sector specific coverage", Color: "#f59e0b"},
	{Name: "Startups", Description: "Startup and venture news", Color: "#8b5cf6"},
}

// up_20261001000004 seeds the default categories
func up_20261001000004(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding default categories...")
	for _, c := range DefaultCategories {
		category := c
		_, err := db.NewInsert().
			Model(&category).
			On("CONFLICT (name) DO NOTHING"). // Idempotent
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000004(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing default categories...")
	names := make([]string, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		names = append(names, c.Name)
	}
	_, err := db.NewDelete().
		Model((*models.Category)(nil)).
		Where("name IN (?)", bun.In(names)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove default categories: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
