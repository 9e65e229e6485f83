package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// DefaultFlowTTL bounds the time between login start and callback.
const DefaultFlowTTL = 10 * time.Minute

// IdentityProvider runs the two halves of the authorization code exchange.
// *auth.RelyingParty implements it.
type IdentityProvider interface {
	Begin(ctx context.Context, scopes []string, redirectURI string) (*auth.FlowState, error)
	Exchange(ctx context.Context, flow *auth.FlowState, code string) (*auth.Identity, error)
}

// SessionCommitter persists session changes. *session.Manager implements it.
type SessionCommitter interface {
	Commit(ctx context.Context, s *session.Session) error
}

// Reconciler brings persisted roles in line with asserted ones.
type Reconciler interface {
	Reconcile(ctx context.Context, identity *auth.Identity, asserted []string) (*models.User, error)
}

// FlowConfig configures a FlowManager.
type FlowConfig struct {
	Provider   IdentityProvider
	Sessions   SessionCommitter
	Gate       *auth.DomainGate
	Reconciler Reconciler
	Logger     *slog.Logger

	// FlowTTL defaults to DefaultFlowTTL.
	FlowTTL time.Duration
	// ExchangeTimeout bounds the token endpoint call. Zero disables it.
	ExchangeTimeout time.Duration
}

// FlowManager drives the login flow: Start stores fresh flow state in the
// session, Complete consumes it exactly once and logs the user in.
type FlowManager struct {
	cfg FlowConfig
	now func() time.Time
}

// NewFlowManager creates a FlowManager.
func NewFlowManager(cfg FlowConfig) *FlowManager {
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = DefaultFlowTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FlowManager{cfg: cfg, now: time.Now}
}

// LoginResult describes a completed login.
type LoginResult struct {
	Identity *auth.Identity
	User     *models.User
}

// Start discards any pending flow in s, begins a new one and commits it.
// It returns the provider URL the browser must be sent to.
func (m *FlowManager) Start(ctx context.Context, s *session.Session, scopes []string, redirectURI string) (string, error) {
	s.Delete(FlowKey)

	flow, err := m.cfg.Provider.Begin(ctx, scopes, redirectURI)
	if err != nil {
		if commitErr := m.cfg.Sessions.Commit(ctx, s); commitErr != nil {
			m.cfg.Logger.WarnContext(ctx, "failed to discard login flow", slog.String("error", commitErr.Error()))
		}
		return "", fmt.Errorf("begin login flow: %w", err)
	}

	if err := s.Set(FlowKey, flow); err != nil {
		return "", err
	}
	if err := m.cfg.Sessions.Commit(ctx, s); err != nil {
		return "", fmt.Errorf("store login flow: %w", err)
	}

	m.cfg.Logger.DebugContext(ctx, "login flow started")
	return flow.AuthURL, nil
}

// Complete finishes the flow stored in s using the callback query.
//
// The flow state is removed and committed before the provider is
// contacted, so a second callback for the same flow fails with
// auth.ErrFlowExpired even when both run concurrently. Errors:
//   - auth.ErrFlowExpired: no flow, flow too old, state mismatch or already used
//   - *auth.ProviderError: the provider reported or caused a failure
//   - auth.ErrProviderUnavailable: the token endpoint could not be reached
//   - auth.ErrDomainDenied: the email domain is not allowed; s is cleared
func (m *FlowManager) Complete(ctx context.Context, s *session.Session, query url.Values) (*LoginResult, error) {
	var flow auth.FlowState
	found, err := s.Get(FlowKey, &flow)
	if !found {
		return nil, fmt.Errorf("%w: no login in progress", auth.ErrFlowExpired)
	}

	s.Delete(FlowKey)
	if commitErr := m.cfg.Sessions.Commit(ctx, s); commitErr != nil {
		if errors.Is(commitErr, session.ErrConflict) {
			return nil, fmt.Errorf("%w: login flow already used", auth.ErrFlowExpired)
		}
		return nil, fmt.Errorf("consume login flow: %w", commitErr)
	}

	if err != nil {
		m.cfg.Logger.WarnContext(ctx, "discarding unreadable login flow", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: unreadable login flow", auth.ErrFlowExpired)
	}
	if m.now().Sub(flow.CreatedAt) > m.cfg.FlowTTL {
		return nil, fmt.Errorf("%w: login flow older than %s", auth.ErrFlowExpired, m.cfg.FlowTTL)
	}

	if code := query.Get("error"); code != "" {
		return nil, &auth.ProviderError{Code: code, Description: query.Get("error_description")}
	}
	if query.Get("state") != flow.State {
		return nil, fmt.Errorf("%w: state mismatch", auth.ErrFlowExpired)
	}
	code := query.Get("code")
	if code == "" {
		return nil, &auth.ProviderError{Code: "invalid_request", Description: "authorization code missing"}
	}

	identity, err := m.exchange(ctx, &flow, code)
	if err != nil {
		m.cfg.Logger.WarnContext(ctx, "token exchange failed", slog.String("error", err.Error()))
		return nil, err
	}

	if !m.cfg.Gate.Allowed(identity.Email) {
		m.cfg.Logger.WarnContext(ctx, "login rejected: email domain not allowed",
			slog.String("email", identity.Email),
			slog.String("subject", identity.Subject),
		)
		s.Clear()
		if commitErr := m.cfg.Sessions.Commit(ctx, s); commitErr != nil {
			m.cfg.Logger.WarnContext(ctx, "failed to clear denied session", slog.String("error", commitErr.Error()))
		}
		return nil, auth.ErrDomainDenied
	}

	user, err := m.cfg.Reconciler.Reconcile(ctx, identity, identity.Roles)
	if err != nil {
		return nil, fmt.Errorf("reconcile roles: %w", err)
	}

	snap := &Snapshot{
		Subject:         identity.Subject,
		Email:           identity.Email,
		Name:            identity.Name,
		Roles:           identity.Roles,
		Source:          auth.SourceSession,
		AuthenticatedAt: m.now().UTC(),
	}
	if err := s.Set(PrincipalKey, snap); err != nil {
		return nil, err
	}
	s.Regenerate()
	if err := m.cfg.Sessions.Commit(ctx, s); err != nil {
		return nil, fmt.Errorf("store login session: %w", err)
	}

	m.cfg.Logger.InfoContext(ctx, "user logged in",
		slog.String("subject", identity.Subject),
		slog.String("email", identity.Email),
		slog.Any("roles", user.RoleNames()),
	)
	return &LoginResult{Identity: identity, User: user}, nil
}

func (m *FlowManager) exchange(ctx context.Context, flow *auth.FlowState, code string) (*auth.Identity, error) {
	if m.cfg.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ExchangeTimeout)
		defer cancel()
	}

	type result struct {
		identity *auth.Identity
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := m.cfg.Provider.Exchange(ctx, flow, code)
		done <- result{identity, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil && !errors.Is(res.err, auth.ErrProviderUnavailable) {
			return nil, fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, res.err)
		}
		return res.identity, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, ctx.Err())
	}
}
