package cmdutil

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/TBMCG/RSS-feed/internal/config"
	"github.com/TBMCG/RSS-feed/internal/db/bunx"
)

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.DatabaseMaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
