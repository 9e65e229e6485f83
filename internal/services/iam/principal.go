package iam

import (
	"time"

	"github.com/TBMCG/RSS-feed/internal/auth"
)

// Session keys owned by this package.
const (
	// FlowKey holds the in-flight auth.FlowState.
	FlowKey = "auth_flow"
	// PrincipalKey holds the Snapshot of the logged-in user.
	PrincipalKey = "user"
)

// Snapshot is the claim set kept in the session for a logged-in caller.
// It is written at login (or when a bearer token is bridged) and read by
// every later request in the session.
type Snapshot struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	// Roles records what the provider asserted at login, before filtering,
	// for auditing only. Authorization always uses the persisted roles.
	Roles           []string             `json:"roles,omitempty"`
	Source          auth.PrincipalSource `json:"source"`
	AuthenticatedAt time.Time            `json:"authenticated_at"`
	// ExpiresAt bounds snapshots bridged from bearer tokens to the token's
	// own lifetime.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Snapshot) expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// principal builds a Principal from the snapshot. Roles and Registered are
// filled in by the Resolver from the persisted user.
func (s *Snapshot) principal() *auth.Principal {
	return &auth.Principal{
		Subject: s.Subject,
		Email:   s.Email,
		Name:    s.Name,
		Source:  s.Source,
	}
}
