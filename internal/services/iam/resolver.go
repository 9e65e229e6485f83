package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// UserReader looks up persisted users with their role assignments.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Resolver determines the Principal of a request. It consults the session
// snapshot first and the bearer token second; the order is fixed.
type Resolver struct {
	sessionAuth *SessionAuthenticator
	tokenAuth   *TokenAuthenticator
	users       UserReader
	logger      *slog.Logger
}

// NewResolver creates a Resolver verifying bearer tokens with verifier.
func NewResolver(verifier TokenVerifier, users UserReader, logger *slog.Logger) *Resolver {
	return &Resolver{
		sessionAuth: NewSessionAuthenticator(),
		tokenAuth:   NewTokenAuthenticator(verifier, logger),
		users:       users,
		logger:      logger,
	}
}

// Resolve returns the Principal for r, or nil when the request is
// unauthenticated. bridged is true when a verified bearer token was copied
// into s, which only happens for a session that is already stored; the
// caller must commit s for the bridge to take effect.
//
// A store failure while loading the persisted user is returned as an error.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request, s *session.Session) (principal *auth.Principal, bridged bool, err error) {
	req := AuthRequest{Headers: r.Header, Session: s}

	snap, err := res.sessionAuth.Authenticate(ctx, req)
	if err != nil {
		// A snapshot that cannot be decoded is treated as absent.
		res.logger.WarnContext(ctx, "ignoring unreadable session principal", slog.String("error", err.Error()))
		snap = nil
	}

	if snap == nil {
		snap, err = res.tokenAuth.Authenticate(ctx, req)
		if err != nil {
			return nil, false, err
		}
		if snap == nil {
			return nil, false, nil
		}
		// Only a session the client already holds is bridged. A client
		// sending just the token would never return the new cookie.
		if !s.IsNew() {
			if err := s.Set(PrincipalKey, snap); err != nil {
				return nil, false, err
			}
			bridged = true
		}
	}

	principal = snap.principal()
	if err := res.enrich(ctx, principal); err != nil {
		return nil, bridged, err
	}
	return principal, bridged, nil
}

// enrich loads the persisted role assignments for the principal.
func (res *Resolver) enrich(ctx context.Context, p *auth.Principal) error {
	user, err := res.users.GetByID(ctx, p.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		p.Registered = false
		p.Roles = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	p.Registered = true
	p.Roles = user.RoleNames()
	return nil
}
