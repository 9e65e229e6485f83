package auth

import (
	"context"
	"fmt"
)

// PrincipalSource records which channel authenticated the principal.
type PrincipalSource string

const (
	// SourceSession means the principal came from the session snapshot
	// written at login.
	SourceSession PrincipalSource = "session"
	// SourceBearer means the principal came from a verified bearer token.
	SourceBearer PrincipalSource = "bearer"
)

// Principal is the authenticated caller for one request.
type Principal struct {
	// Subject is the identity provider's stable subject identifier.
	Subject string
	Email   string
	Name    string
	// Roles are the persisted role assignments for Subject.
	Roles []string
	// Registered is false when no persisted user exists for Subject.
	Registered bool
	Source     PrincipalSource
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole returns ErrPermissionDenied unless the principal is
// registered and holds role.
func (p *Principal) RequireRole(role string) error {
	if p == nil || !p.Registered {
		return fmt.Errorf("%w: no persisted user", ErrPermissionDenied)
	}
	if !p.HasRole(role) {
		return fmt.Errorf("%w: %s role required", ErrPermissionDenied, role)
	}
	return nil
}

type principalContextKey struct{}

// SetUserContext stores the authenticated principal on the context for downstream consumers.
func SetUserContext(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetUserFromContext retrieves the authenticated principal from the context.
func GetUserFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}

// RequireUser is GetUserFromContext for code that runs behind the
// authentication guard. It returns ErrUnauthenticated when no principal is set.
func RequireUser(ctx context.Context) (*Principal, error) {
	principal, ok := GetUserFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return principal, nil
}
