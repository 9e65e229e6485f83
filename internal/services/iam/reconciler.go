package iam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/models"
)

// UserSyncer persists a user and its complete role set atomically.
type UserSyncer interface {
	SyncWithRoles(ctx context.Context, user *models.User, roles []string) (*models.User, error)
}

// RoleReconciler rewrites a user's role assignments to match the roles the
// identity provider asserted at login. The result is always the known
// subset of the asserted roles, plus admin for the bootstrap admin email.
type RoleReconciler struct {
	users      UserSyncer
	adminEmail string
	logger     *slog.Logger
}

// NewRoleReconciler creates a reconciler. adminEmail may be empty to
// disable the bootstrap admin.
func NewRoleReconciler(users UserSyncer, adminEmail string, logger *slog.Logger) *RoleReconciler {
	return &RoleReconciler{
		users:      users,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     logger,
	}
}

// Reconcile upserts the user described by identity and replaces its role
// assignments with the filtered asserted roles in one transaction.
func (r *RoleReconciler) Reconcile(ctx context.Context, identity *auth.Identity, asserted []string) (*models.User, error) {
	roles := r.EffectiveRoles(ctx, identity.Email, asserted)

	user, err := r.users.SyncWithRoles(ctx, &models.User{
		ID:    identity.Subject,
		Email: identity.Email,
		Name:  identity.Name,
	}, roles)
	if err != nil {
		return nil, fmt.Errorf("sync user %s: %w", identity.Subject, err)
	}

	r.logger.InfoContext(ctx, "user roles reconciled",
		slog.String("subject", identity.Subject),
		slog.String("email", identity.Email),
		slog.Any("roles", roles),
	)
	return user, nil
}

// EffectiveRoles filters asserted to known roles, removes duplicates and
// applies the bootstrap admin rule. The result is sorted.
func (r *RoleReconciler) EffectiveRoles(ctx context.Context, email string, asserted []string) []string {
	seen := make(map[string]bool, len(asserted)+1)
	roles := make([]string, 0, len(asserted)+1)

	for _, name := range asserted {
		role := auth.NormalizeRole(name)
		if !auth.IsKnownRole(role) {
			r.logger.WarnContext(ctx, "dropping unknown role from identity provider",
				slog.String("email", email),
				slog.String("role", name),
			)
			continue
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}

	if r.adminEmail != "" && strings.EqualFold(email, r.adminEmail) && !seen[auth.RoleAdmin] {
		roles = append(roles, auth.RoleAdmin)
	}

	return auth.SortRoles(roles)
}
