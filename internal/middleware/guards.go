package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// Stage orders guards within a chain. Lower stages run first.
type Stage int

const (
	StageAuthentication Stage = iota + 1
	StageDomain
	StageAuthorization
)

// Guard is one access check. Check returns false after it has written the
// rejection response.
type Guard interface {
	Stage() Stage
	Check(w http.ResponseWriter, r *http.Request) bool
}

type guardFunc struct {
	stage Stage
	check func(w http.ResponseWriter, r *http.Request) bool
}

func (g guardFunc) Stage() Stage { return g.stage }

func (g guardFunc) Check(w http.ResponseWriter, r *http.Request) bool { return g.check(w, r) }

// Permissions decides whether a role set may act on an object.
// *iam.Authorizer implements it.
type Permissions interface {
	Can(roles []string, obj, act string) (bool, error)
}

// Notice categories.
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeSuccess = "success"
)

// Guards builds access checks. It must run behind the authentication
// middleware.
type Guards struct {
	Sessions    *session.Manager
	Gate        *auth.DomainGate
	Permissions Permissions
	Logger      *slog.Logger
}

// Chain returns middleware running guards in stage order, stopping at the
// first failure. Guards of the same stage keep their given order.
func Chain(guards ...Guard) func(http.Handler) http.Handler {
	ordered := append([]Guard(nil), guards...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Stage() < ordered[j].Stage()
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, g := range ordered {
				if !g.Check(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticated requires a resolved principal.
func (g *Guards) Authenticated() Guard {
	return guardFunc{stage: StageAuthentication, check: func(w http.ResponseWriter, r *http.Request) bool {
		if _, ok := auth.GetUserFromContext(r.Context()); ok {
			return true
		}
		if IsAPIRequest(r) {
			WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		} else {
			http.Redirect(w, r, "/login", http.StatusFound)
		}
		return false
	}}
}

// DomainAllowed requires the principal's email domain to be allowed. On
// failure the whole session is cleared.
func (g *Guards) DomainAllowed() Guard {
	return guardFunc{stage: StageDomain, check: func(w http.ResponseWriter, r *http.Request) bool {
		principal, ok := auth.GetUserFromContext(r.Context())
		if ok && g.Gate.Allowed(principal.Email) {
			return true
		}

		email := ""
		if ok {
			email = principal.Email
		}
		g.logger().WarnContext(r.Context(), "request rejected: email domain not allowed",
			slog.String("email", email),
			slog.String("path", r.URL.Path),
		)

		if s, found := session.FromContext(r.Context()); found {
			s.Clear()
			if !IsAPIRequest(r) {
				_ = session.AddFlash(s, NoticeError, g.Gate.DeniedMessage())
			}
			if err := g.Sessions.Save(r.Context(), w, s); err != nil {
				g.logger().WarnContext(r.Context(), "failed to clear session", slog.String("error", err.Error()))
			}
		}

		if IsAPIRequest(r) {
			WriteError(w, http.StatusForbidden, "domain_denied", g.Gate.DeniedMessage())
		} else {
			http.Redirect(w, r, "/logout", http.StatusFound)
		}
		return false
	}}
}

// HasRole requires the persisted role assignments to include role.
func (g *Guards) HasRole(role string) Guard {
	return guardFunc{stage: StageAuthorization, check: func(w http.ResponseWriter, r *http.Request) bool {
		principal, _ := auth.GetUserFromContext(r.Context())
		if err := principal.RequireRole(role); err != nil {
			g.logger().DebugContext(r.Context(), "role check failed", slog.String("error", err.Error()))
			g.deny(w, r, fmt.Sprintf("Access denied. %s role required.", role))
			return false
		}
		return true
	}}
}

// CanManageFeeds requires permission to manage feeds.
func (g *Guards) CanManageFeeds() Guard {
	return g.capability(auth.ObjectFeeds, auth.ActionManage, "You do not have permission to manage feeds.")
}

// HasCapability requires permission to manage obj.
func (g *Guards) HasCapability(obj string) Guard {
	return g.capability(obj, auth.ActionManage, fmt.Sprintf("You do not have permission to manage %s.", obj))
}

func (g *Guards) capability(obj, act, message string) Guard {
	return guardFunc{stage: StageAuthorization, check: func(w http.ResponseWriter, r *http.Request) bool {
		principal, ok := auth.GetUserFromContext(r.Context())
		if !ok || !principal.Registered {
			g.deny(w, r, message)
			return false
		}
		allowed, err := g.Permissions.Can(principal.Roles, obj, act)
		if err != nil {
			g.logger().ErrorContext(r.Context(), "authorization check failed", slog.String("error", err.Error()))
			WriteError(w, http.StatusInternalServerError, "internal_error", "authorization error")
			return false
		}
		if !allowed {
			g.deny(w, r, message)
		}
		return allowed
	}}
}

// deny answers a failed authorization check.
func (g *Guards) deny(w http.ResponseWriter, r *http.Request, message string) {
	if IsAPIRequest(r) {
		WriteError(w, http.StatusForbidden, "permission_denied", message)
		return
	}
	if s, ok := session.FromContext(r.Context()); ok {
		_ = session.AddFlash(s, NoticeError, message)
		if err := g.Sessions.Save(r.Context(), w, s); err != nil {
			g.logger().WarnContext(r.Context(), "failed to store notice", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (g *Guards) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
