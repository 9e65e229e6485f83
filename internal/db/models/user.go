package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a person who has completed at least one login.
// ID is the identity provider's stable subject identifier.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string      `bun:"id,pk"`
	Email       string      `bun:"email,notnull,unique"`
	Name        string      `bun:"name"`
	CreatedAt   time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	LastLoginAt *time.Time  `bun:"last_login_at"`
	Roles       []*UserRole `bun:"rel:has-many,join:id=user_id"`
}

// RoleNames returns the names of the loaded role assignments.
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.RoleName)
	}
	return names
}

// HasRole reports whether the loaded role assignments include name.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.RoleName == name {
			return true
		}
	}
	return false
}

// UserRole grants one named role to one user. (user_id, role_name) is unique.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     string    `bun:"user_id,notnull"`
	RoleName   string    `bun:"role_name,notnull"`
	AssignedAt time.Time `bun:"assigned_at,nullzero,notnull,default:current_timestamp"`
}
