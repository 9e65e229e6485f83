package migrations

import (
	"context"
	"fmt"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000002, down_20261001000002)
}

// up_20261001000002 creates the server-side session table
func up_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating sessions table...")
	_, err := db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	if err := createIndex(ctx, db, "idx_sessions_expires_at", "sessions", false, "expires_at"); err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping sessions table...")
	if _, err := db.NewDropTable().Model((*models.Session)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop sessions table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
