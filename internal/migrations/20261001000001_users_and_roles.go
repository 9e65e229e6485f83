package migrations

import (
	"context"
	"fmt"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// up_20261001000001 creates users and their role assignments
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating user_roles table...")
	_, err = db.NewCreateTable().
		Model((*models.UserRole)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create user_roles table: %w", err)
	}

	// At most one assignment per (user, role)
	if err := createIndex(ctx, db, "idx_user_roles_user_role", "user_roles", true, "user_id", "role_name"); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20261001000001 drops user_roles then users
func down_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping user_roles and users tables...")
	for _, model := range []any{(*models.UserRole)(nil), (*models.User)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
