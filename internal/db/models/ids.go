package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	_ bun.BeforeAppendModelHook = (*Category)(nil)
	_ bun.BeforeAppendModelHook = (*Feed)(nil)
)

// newID returns a time-ordered UUIDv7 so keys sort by creation on both
// PostgreSQL and SQLite.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// BeforeAppendModel assigns an ID on insert when none is set.
func (c *Category) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && c.ID == "" {
		c.ID = newID()
	}
	return nil
}

// BeforeAppendModel assigns an ID on insert when none is set.
func (f *Feed) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && f.ID == "" {
		f.ID = newID()
	}
	return nil
}
