package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsSQLite reports whether db is backed by SQLite. serve migrates SQLite
// databases on startup.
func IsSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// createIndex creates an index unless it already exists. Both dialects
// accept the generated statement.
func createIndex(ctx context.Context, db bun.IDB, name, table string, unique bool, columns ...string) error {
	q := db.NewCreateIndex().
		Table(table).
		Index(name).
		Column(columns...).
		IfNotExists()
	if unique {
		q = q.Unique()
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}
