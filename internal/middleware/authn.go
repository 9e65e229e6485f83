package middleware

import (
	"log/slog"
	"net/http"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// AuthnDependencies bundles collaborators required by the authentication middleware.
type AuthnDependencies struct {
	Sessions *session.Manager
	Resolver *iam.Resolver
	Logger   *slog.Logger
}

// NewAuthnMiddleware loads the request's session and resolves its
// principal. It never rejects a request on its own; guards do that.
// Downstream handlers find the session via session.FromContext and the
// principal via auth.GetUserFromContext.
func NewAuthnMiddleware(deps AuthnDependencies) func(http.Handler) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			s, err := deps.Sessions.Load(r)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load session", slog.String("error", err.Error()))
				WriteError(w, http.StatusInternalServerError, "internal_error", "session unavailable")
				return
			}
			ctx = session.NewContext(ctx, s)

			principal, bridged, err := deps.Resolver.Resolve(ctx, r, s)
			if err != nil {
				logger.ErrorContext(ctx, "failed to resolve principal",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteError(w, http.StatusInternalServerError, "internal_error", "authentication error")
				return
			}

			if bridged {
				// The principal is valid for this request even if the
				// bridge cannot be stored.
				if err := deps.Sessions.Save(ctx, w, s); err != nil {
					logger.WarnContext(ctx, "failed to store bridged session", slog.String("error", err.Error()))
				}
			}

			if principal != nil {
				ctx = auth.SetUserContext(ctx, principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
