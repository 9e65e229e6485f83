package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session is a server-side browser session. ID is the SHA-256 hex digest of
// the cookie token; the raw token is never stored.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string    `bun:"id,pk"`
	Data      string    `bun:"data,notnull"` // JSON object of session values
	Version   int64     `bun:"version,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
