package migrations

import (
	"context"
	"fmt"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000003, down_20261001000003)
}

// up_20261001000003 creates categories and feeds
func up_20261001000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating categories table...")
	_, err := db.NewCreateTable().
		Model((*models.Category)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create categories table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating feeds table...")
	_, err = db.NewCreateTable().
		Model((*models.Feed)(nil)).
		IfNotExists().
		ForeignKey(`("category_id") REFERENCES "categories" ("id") ON DELETE SET NULL`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create feeds table: %w", err)
	}

	if err := createIndex(ctx, db, "idx_feeds_category_id", "feeds", false, "category_id"); err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping feeds and categories tables...")
	for _, model := range []any{(*models.Feed)(nil), (*models.Category)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
