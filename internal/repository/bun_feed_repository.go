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

// DefaultRefreshInterval is applied to feeds created without one (minutes)
const DefaultRefreshInterval = 60

// BunFeedRepository implements FeedRepository using Bun ORM
type BunFeedRepository struct {
	db *bun.DB
}

// NewBunFeedRepository creates a new Bun-based feed repository
func NewBunFeedRepository(db *bun.DB) *BunFeedRepository {
	return &BunFeedRepository{db: db}
}

// List returns all feeds with their category, ordered by name
func (r *BunFeedRepository) List(ctx context.Context) ([]models.Feed, error) {
	var feeds []models.Feed
	err := r.db.NewSelect().
		Model(&feeds).
		Relation("Category").
		Order("f.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

func (r *BunFeedRepository) GetByID(ctx context.Context, id string) (*models.Feed, error) {
	feed := new(models.Feed)
	err := r.db.NewSelect().
		Model(feed).
		Relation("Category").
		Where("f.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("feed %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return feed, nil
}

// Create inserts a feed, applying the default refresh interval
func (r *BunFeedRepository) Create(ctx context.Context, feed *models.Feed) error {
	now := time.Now().UTC()
	if feed.RefreshInterval <= 0 {
		feed.RefreshInterval = DefaultRefreshInterval
	}
	feed.CreatedAt, feed.UpdatedAt = now, now

	if _, err := r.db.NewInsert().Model(feed).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("feed url %q: %w", feed.URL, ErrAlreadyExists)
		}
		return fmt.Errorf("create feed: %w", err)
	}
	return nil
}

func (r *BunFeedRepository) Update(ctx context.Context, feed *models.Feed) error {
	feed.UpdatedAt = time.Now().UTC()
	if feed.RefreshInterval <= 0 {
		feed.RefreshInterval = DefaultRefreshInterval
	}
	res, err := r.db.NewUpdate().
		Model(feed).
		Column("name", "url", "category_id", "enabled", "refresh_interval", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("feed url %q: %w", feed.URL, ErrAlreadyExists)
		}
		return fmt.Errorf("update feed: %w", err)
	}
	return requireAffected(res, "feed", feed.ID)
}

func (r *BunFeedRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.NewUpdate().
		Model((*models.Feed)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("toggle feed: %w", err)
	}
	return requireAffected(res, "feed", id)
}

func (r *BunFeedRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*models.Feed)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return requireAffected(res, "feed", id)
}
