package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Category groups feeds on the dashboard.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description" json:"description"`
	Color       string    `bun:"color,notnull" json:"color"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Feed is a syndication source shown on the dashboard.
type Feed struct {
	bun.BaseModel `bun:"table:feeds,alias:f"`

	ID              string     `bun:"id,pk" json:"id"`
	Name            string     `bun:"name,notnull" json:"name"`
	URL             string     `bun:"url,notnull,unique" json:"url"`
	CategoryID      *string    `bun:"category_id" json:"category_id"`
	Enabled         bool       `bun:"enabled,notnull" json:"enabled"`
	RefreshInterval int        `bun:"refresh_interval,notnull" json:"refresh_interval"` // minutes
	LastFetchedAt   *time.Time `bun:"last_fetched_at" json:"last_fetched_at"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
}
