package auth

import (
	"sort"
	"strings"
)

// Roles known to the dashboard. Any other role name asserted by the
// identity provider is ignored.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// KnownRoles lists the closed set of assignable roles.
var KnownRoles = []string{RoleAdmin, RoleEditor, RoleViewer}

// PrefixRole is the Casbin subject prefix for roles.
const PrefixRole = "role:"

// Casbin objects and actions.
const (
	ObjectFeeds      = "feeds"
	ObjectCategories = "categories"
	ObjectUsers      = "users"

	ActionRead   = "read"
	ActionManage = "manage"
)

// RoleID creates a Casbin role identifier with the standard prefix
// Example: RoleID("editor") → "role:editor"
func RoleID(name string) string {
	return PrefixRole + name
}

// NormalizeRole lower-cases and trims a role name.
func NormalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsKnownRole reports whether name, after normalization, is a known role.
func IsKnownRole(name string) bool {
	name = NormalizeRole(name)
	for _, r := range KnownRoles {
		if r == name {
			return true
		}
	}
	return false
}

// SortRoles returns a sorted copy of roles.
func SortRoles(roles []string) []string {
	out := append([]string(nil), roles...)
	sort.Strings(out)
	return out
}
