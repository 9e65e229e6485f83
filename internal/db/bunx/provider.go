package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // SQLite driver
)

// Options tunes the connection pool.
type Options struct {
	// MaxOpenConns applies to PostgreSQL only; SQLite always uses one connection.
	MaxOpenConns int
	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	MaxOpenConns: 25,
	BusyTimeout:  5 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultOptions.MaxOpenConns
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultOptions.BusyTimeout
	}
	return o
}

// Dialect picks the bun dialect for a DSN. postgres://, postgresql:// and
// pgdriver's unix:// socket form select PostgreSQL; anything else (file:,
// :memory:, a bare path) is a SQLite DSN.
func Dialect(dsn string) dialect.Name {
	for _, prefix := range []string{"postgres://", "postgresql://", "unix://"} {
		if strings.HasPrefix(dsn, prefix) {
			return dialect.PG
		}
	}
	return dialect.SQLite
}

// NewDB opens and pings the database named by dsn.
func NewDB(ctx context.Context, dsn string, opts ...Options) (*bun.DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o = o.withDefaults()

	var (
		db  *bun.DB
		err error
	)
	switch Dialect(dsn) {
	case dialect.PG:
		db = openPostgreSQL(dsn, o)
	default:
		db, err = openSQLite(ctx, dsn, o)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openPostgreSQL(dsn string, o Options) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(o.MaxOpenConns)
	sqldb.SetMaxIdleConns(o.MaxOpenConns)
	return bun.NewDB(sqldb, pgdialect.New())
}

func openSQLite(ctx context.Context, dsn string, o Options) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One writer, and an in-memory database exists per connection.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.BusyTimeout.Milliseconds()),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Close closes db; a nil db is ignored.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
