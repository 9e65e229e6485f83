package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/config"
	"github.com/TBMCG/RSS-feed/internal/logging"
	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

// RouterOptions controls the construction of the dashboard HTTP router.
type RouterOptions struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Sessions   *session.Manager
	Resolver   *iam.Resolver
	Flow       *iam.FlowManager
	Authorizer *iam.Authorizer
	Tokens     *auth.TokenCodec
	Gate       *auth.DomainGate

	Users      repository.UserRepository
	Categories repository.CategoryRepository
	Feeds      repository.FeedRepository

	CORSOptions   *cors.Options
	HealthHandler http.HandlerFunc
}

// CORSOptionsFor returns the CORS policy for the configured frontend origins.
// Credentials are allowed so the session cookie reaches the API.
func CORSOptionsFor(cfg *config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	gridmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, the
// auth endpoints and the guarded API.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	corsCfg := CORSOptionsFor(opts.Cfg)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	h := &handlers{opts: opts, logger: logger}
	guards := &gridmiddleware.Guards{
		Sessions:    opts.Sessions,
		Gate:        opts.Gate,
		Permissions: opts.Authorizer,
		Logger:      logger,
	}

	r.Group(func(r chi.Router) {
		r.Use(gridmiddleware.NewAuthnMiddleware(gridmiddleware.AuthnDependencies{
			Sessions: opts.Sessions,
			Resolver: opts.Resolver,
			Logger:   logger,
		}))

		// Public auth endpoints
		r.Get("/login", h.login)
		r.Get(opts.Cfg.IdP.RedirectPath, h.callback)
		r.Get("/auth/error", h.authError)
		r.Get("/logout", h.logout)
		r.Post("/logout", h.logout)
		r.Get("/clear-session", h.clearSession)

		member := gridmiddleware.Chain(guards.Authenticated(), guards.DomainAllowed())
		admin := gridmiddleware.Chain(guards.Authenticated(), guards.DomainAllowed(), guards.HasRole(auth.RoleAdmin))
		feedManager := gridmiddleware.Chain(guards.Authenticated(), guards.DomainAllowed(), guards.CanManageFeeds())
		userManager := gridmiddleware.Chain(guards.Authenticated(), guards.DomainAllowed(), guards.HasCapability(auth.ObjectUsers))

		r.With(member).Get("/", h.dashboard)

		r.Route("/api", func(r chi.Router) {
			r.With(member).Get("/user/info", h.userInfo)
			r.With(member).Post("/auth/token", h.issueToken)

			r.Route("/feeds", func(r chi.Router) {
				r.With(feedManager).Get("/", h.listFeeds)
				r.With(feedManager).Post("/", h.createFeed)
				r.With(feedManager).Put("/{id}", h.updateFeed)
				r.With(feedManager).Post("/{id}/toggle", h.toggleFeed)
				r.With(admin).Delete("/{id}", h.deleteFeed)
			})

			r.Route("/categories", func(r chi.Router) {
				r.With(member).Get("/", h.listCategories)
				r.With(admin).Post("/", h.createCategory)
				r.With(admin).Put("/{id}", h.updateCategory)
				r.With(admin).Delete("/{id}", h.deleteCategory)
			})

			r.With(userManager).Get("/users", h.listUsers)
		})
	})

	return r
}

// handlers holds the collaborators shared by all endpoint handlers.
type handlers struct {
	opts   RouterOptions
	logger *slog.Logger
}
