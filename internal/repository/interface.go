package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert or update violates a
	// unique constraint.
	ErrAlreadyExists = errors.New("already exists")
)

// UserRepository exposes persistence operations for users and their role
// assignments.
type UserRepository interface {
	// GetByID returns the user with its role assignments loaded.
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// SyncWithRoles upserts the user and replaces its role assignments with
	// roles in a single transaction.
	SyncWithRoles(ctx context.Context, user *models.User, roles []string) (*models.User, error)
}

// CategoryRepository exposes persistence operations for feed categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

// FeedRepository exposes persistence operations for feeds.
type FeedRepository interface {
	List(ctx context.Context) ([]models.Feed, error)
	GetByID(ctx context.Context, id string) (*models.Feed, error)
	Create(ctx context.Context, feed *models.Feed) error
	Update(ctx context.Context, feed *models.Feed) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// isUniqueViolation recognizes unique constraint failures from PostgreSQL
// (SQLSTATE 23505) and SQLite.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
