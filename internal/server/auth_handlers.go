package server

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/TBMCG/RSS-feed/internal/auth"
	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// Error codes passed to /auth/error.
const (
	errCodeUnauthorizedDomain = "unauthorized_domain"
	errCodeUnavailable        = "temporarily_unavailable"
	errCodeServer             = "server_error"
)

const flowExpiredNotice = "Authentication session expired. Please try again."

// login starts the authorization code flow, or sends authenticated
// callers home.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s := mustSession(r)
	authURL, err := h.opts.Flow.Start(r.Context(), s, h.opts.Cfg.IdP.Scopes, h.opts.Cfg.RedirectURI())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to start login", slog.String("error", err.Error()))
		h.opts.Sessions.WriteCookie(w, s)
		redirectToAuthError(w, r, errCodeUnavailable, "Login could not be started. Please try again.")
		return
	}

	h.opts.Sessions.WriteCookie(w, s)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback completes the flow the provider redirected back for.
func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := mustSession(r)

	result, err := h.opts.Flow.Complete(ctx, s, r.URL.Query())
	if err == nil {
		name := result.Identity.Name
		if name == "" {
			name = result.Identity.Email
		}
		h.notice(w, r, s, gridmiddleware.NoticeSuccess, "Welcome, "+name+"!")
		http.Redirect(w, r, h.opts.Cfg.FrontendURL, http.StatusFound)
		return
	}

	var providerErr *auth.ProviderError
	switch {
	case errors.Is(err, auth.ErrFlowExpired):
		h.logger.InfoContext(ctx, "login callback without a usable flow", slog.String("error", err.Error()))
		h.notice(w, r, s, gridmiddleware.NoticeWarning, flowExpiredNotice)
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.As(err, &providerErr):
		h.opts.Sessions.WriteCookie(w, s)
		redirectToAuthError(w, r, providerErr.Code, providerErr.Description)
	case errors.Is(err, auth.ErrDomainDenied):
		h.opts.Sessions.WriteCookie(w, s)
		redirectToAuthError(w, r, errCodeUnauthorizedDomain, h.opts.Gate.DeniedMessage())
	case errors.Is(err, auth.ErrProviderUnavailable):
		h.opts.Sessions.WriteCookie(w, s)
		redirectToAuthError(w, r, errCodeUnavailable, "The identity provider could not be reached. Please try again.")
	default:
		h.logger.ErrorContext(ctx, "login failed", slog.String("error", err.Error()))
		h.opts.Sessions.WriteCookie(w, s)
		redirectToAuthError(w, r, errCodeServer, "Login could not be completed.")
	}
}

// AuthErrorResponse is the body of /auth/error.
type AuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (h *handlers) authError(w http.ResponseWriter, r *http.Request) {
	resp := AuthErrorResponse{
		Error:            r.URL.Query().Get("error"),
		ErrorDescription: r.URL.Query().Get("error_description"),
	}
	if resp.Error == "" {
		resp.Error = "unknown_error"
	}
	status := http.StatusBadRequest
	if resp.Error == errCodeUnauthorizedDomain {
		status = http.StatusForbidden
	}
	gridmiddleware.WriteJSON(w, status, resp)
}

// logout clears the session. Pending notices survive so the page the
// browser lands on can show them.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := mustSession(r)

	if p, ok := auth.GetUserFromContext(ctx); ok {
		h.logger.InfoContext(ctx, "user logged out", slog.String("subject", p.Subject), slog.String("email", p.Email))
	}

	flashes := session.PopFlashes(s)
	s.Clear()
	for _, f := range flashes {
		_ = session.AddFlash(s, f.Category, f.Message)
	}
	if err := h.opts.Sessions.Save(ctx, w, s); err != nil {
		h.logger.WarnContext(ctx, "failed to clear session", slog.String("error", err.Error()))
	}

	if r.Method == http.MethodPost || wantsJSON(r) {
		gridmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
		return
	}
	http.Redirect(w, r, h.opts.Cfg.LogoutURL(), http.StatusFound)
}

func (h *handlers) clearSession(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	s.Clear()
	if err := h.opts.Sessions.Save(r.Context(), w, s); err != nil {
		h.logger.WarnContext(r.Context(), "failed to clear session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// UserResponse represents the caller in API responses
type UserResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	iam.Capabilities
}

// DashboardResponse is the body of the dashboard home.
type DashboardResponse struct {
	User    UserResponse    `json:"user"`
	Notices []session.Flash `json:"notices"`
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	s := mustSession(r)
	notices := session.PopFlashes(s)
	if notices == nil {
		notices = []session.Flash{}
	}
	if err := h.opts.Sessions.Save(r.Context(), w, s); err != nil {
		h.logger.WarnContext(r.Context(), "failed to consume notices", slog.String("error", err.Error()))
	}

	gridmiddleware.WriteJSON(w, http.StatusOK, DashboardResponse{User: user, Notices: notices})
}

func (h *handlers) userInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	gridmiddleware.WriteJSON(w, http.StatusOK, user)
}

// TokenResponse is returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequireUser(r.Context())
	if err != nil {
		gridmiddleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	// A token must not renew itself, so only an interactive login can mint one.
	if p.Source != auth.SourceSession {
		gridmiddleware.WriteError(w, http.StatusForbidden, "permission_denied", "tokens can only be issued to a logged-in browser session")
		return
	}
	token, expiresAt, err := h.opts.Tokens.Issue(p.Subject, p.Email, p.Name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue token", slog.String("error", err.Error()))
		gridmiddleware.WriteError(w, http.StatusInternalServerError, "internal_error", "token could not be issued")
		return
	}
	gridmiddleware.WriteJSON(w, http.StatusOK, TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// currentUser builds the response for the guarded caller.
func (h *handlers) currentUser(w http.ResponseWriter, r *http.Request) (UserResponse, bool) {
	p, err := auth.RequireUser(r.Context())
	if err != nil {
		gridmiddleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return UserResponse{}, false
	}
	caps, err := h.opts.Authorizer.Capabilities(p.Roles)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "capability check failed", slog.String("error", err.Error()))
		gridmiddleware.WriteError(w, http.StatusInternalServerError, "internal_error", "authorization error")
		return UserResponse{}, false
	}
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{ID: p.Subject, Email: p.Email, Name: p.Name, Roles: roles, Capabilities: caps}, true
}

// notice stores a one-time message and writes the session cookie.
func (h *handlers) notice(w http.ResponseWriter, r *http.Request, s *session.Session, category, message string) {
	if err := session.AddFlash(s, category, message); err == nil {
		if err := h.opts.Sessions.Save(r.Context(), w, s); err != nil {
			h.logger.WarnContext(r.Context(), "failed to store notice", slog.String("error", err.Error()))
		}
		return
	}
	h.opts.Sessions.WriteCookie(w, s)
}

func redirectToAuthError(w http.ResponseWriter, r *http.Request, code, description string) {
	q := url.Values{}
	q.Set("error", code)
	q.Set("error_description", description)
	http.Redirect(w, r, "/auth/error?"+q.Encode(), http.StatusFound)
}

func wantsJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// mustSession returns the session loaded by the authentication middleware.
func mustSession(r *http.Request) *session.Session {
	s, ok := session.FromContext(r.Context())
	if !ok {
		panic("server: session middleware not installed")
	}
	return s
}
