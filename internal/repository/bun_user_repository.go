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

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db, now: time.Now}
}

func orderRoles(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("role_name ASC")
}

// GetByID retrieves a user and its role assignments by subject identifier
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getByID(ctx, r.db, id)
}

func (r *BunUserRepository) getByID(ctx context.Context, db bun.IDB, id string) (*models.User, error) {
	user := new(models.User)
	err := db.NewSelect().
		Model(user).
		Relation("Roles", orderRoles).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user by ID: %w", err)
	}
	return user, nil
}

// List returns every user with roles, ordered by email
func (r *BunUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.NewSelect().
		Model(&users).
		Relation("Roles", orderRoles).
		Order("u.email ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SyncWithRoles creates or updates the user keyed by user.ID, deletes every
// existing role assignment, and inserts one row per entry in roles. Either
// all of it commits or none of it does.
func (r *BunUserRepository) SyncWithRoles(ctx context.Context, user *models.User, roles []string) (*models.User, error) {
	now := r.now().UTC()

	var synced *models.User
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &models.User{
			ID:          user.ID,
			Email:       user.Email,
			Name:        user.Name,
			CreatedAt:   now,
			UpdatedAt:   now,
			LastLoginAt: &now,
		}
		_, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (id) DO UPDATE").
			Set("email = EXCLUDED.email").
			Set("name = EXCLUDED.name").
			Set("updated_at = EXCLUDED.updated_at").
			Set("last_login_at = EXCLUDED.last_login_at").
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("upsert user %s: email %s: %w", user.ID, user.Email, ErrAlreadyExists)
			}
			return fmt.Errorf("upsert user: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*models.UserRole)(nil)).
			Where("user_id = ?", user.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete role assignments: %w", err)
		}

		if len(roles) > 0 {
			assignments := make([]*models.UserRole, 0, len(roles))
			for _, name := range roles {
				assignments = append(assignments, &models.UserRole{
					UserID:     user.ID,
					RoleName:   name,
					AssignedAt: now,
				})
			}
			if _, err := tx.NewInsert().Model(&assignments).Exec(ctx); err != nil {
				return fmt.Errorf("insert role assignments: %w", err)
			}
		}

		synced, err = r.getByID(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return synced, nil
}
