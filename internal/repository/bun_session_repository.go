package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/TBMCG/RSS-feed/internal/session"
	"github.com/uptrace/bun"
)

// BunSessionRepository implements session.Store using Bun ORM
type BunSessionRepository struct {
	db  *bun.DB
	now func() time.Time
}

var _ session.Store = (*BunSessionRepository)(nil)

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db, now: time.Now}
}

// Load retrieves an unexpired session by its store key
func (r *BunSessionRepository) Load(ctx context.Context, id string) (*session.Record, error) {
	row := new(models.Session)
	err := r.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !r.now().Before(row.ExpiresAt) {
		return nil, session.ErrNotFound
	}

	values := map[string]json.RawMessage{}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &values); err != nil {
			return nil, fmt.Errorf("decode session data: %w", err)
		}
	}
	return &session.Record{
		ID:        row.ID,
		Values:    values,
		Version:   row.Version,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Save inserts a new session (Version 0) or updates an existing one if its
// stored version still matches.
func (r *BunSessionRepository) Save(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	now := r.now().UTC()

	var res sql.Result
	if rec.Version == 0 {
		res, err = r.db.NewInsert().
			Model(&models.Session{
				ID:        rec.ID,
				Data:      string(data),
				Version:   1,
				ExpiresAt: rec.ExpiresAt.UTC(),
				CreatedAt: now,
				UpdatedAt: now,
			}).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
	} else {
		res, err = r.db.NewUpdate().
			Model((*models.Session)(nil)).
			Set("data = ?", string(data)).
			Set("version = version + 1").
			Set("expires_at = ?", rec.ExpiresAt.UTC()).
			Set("updated_at = ?", now).
			Where("id = ?", rec.ID).
			Where("version = ?", rec.Version).
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if n == 0 {
		return session.ErrConflict
	}
	rec.Version++
	return nil
}

// Delete removes a session
func (r *BunSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now
func (r *BunSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
