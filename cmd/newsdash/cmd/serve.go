package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/TBMCG/RSS-feed/cmd/newsdash/cmd/cmdutil"
	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/config"
	"github.com/TBMCG/RSS-feed/internal/db/bunx"
	"github.com/TBMCG/RSS-feed/internal/migrations"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/server"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
	"github.com/TBMCG/RSS-feed/internal/session"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long:  `Starts the HTTP server with the login flow, the session and bearer authenticated API, and the feed administration endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateIdP(); err != nil {
			return err
		}
		ctx := cmd.Context()

		// Connect to database
		db, err := cmdutil.OpenDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)
		logger.Info("connected to database", slog.String("dialect", bunx.Dialect(cfg.DatabaseURL).String()))

		if autoMigrate || migrations.IsSQLite(db) {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			if !group.IsZero() {
				logger.Info("applied migration group", slog.Int64("group", group.ID))
			}
		}

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		categoryRepo := repository.NewBunCategoryRepository(db)
		feedRepo := repository.NewBunFeedRepository(db)

		sessions := session.NewManager(newSessionStore(db, cfg), session.Options{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
			Lifetime:   cfg.Session.Lifetime,
		})

		tokens, err := auth.NewTokenCodec([]byte(cfg.SecretKey))
		if err != nil {
			return fmt.Errorf("create token codec: %w", err)
		}
		authorizer, err := iam.NewAuthorizer()
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}

		relyingParty, err := auth.NewRelyingParty(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create relying party: %w", err)
		}
		logger.Info("identity provider discovered", slog.String("issuer", cfg.Issuer()))

		gate := auth.NewDomainGate(cfg.AllowedDomains)
		flow := iam.NewFlowManager(iam.FlowConfig{
			Provider:        relyingParty,
			Sessions:        sessions,
			Gate:            gate,
			Reconciler:      iam.NewRoleReconciler(userRepo, cfg.BootstrapAdminEmail, logger),
			Logger:          logger,
			ExchangeTimeout: cfg.IdP.ExchangeTimeout,
		})

		r := server.NewRouter(server.RouterOptions{
			Cfg:        cfg,
			Logger:     logger,
			Sessions:   sessions,
			Resolver:   iam.NewResolver(tokens, userRepo, logger),
			Flow:       flow,
			Authorizer: authorizer,
			Tokens:     tokens,
			Gate:       gate,
			Users:      userRepo,
			Categories: categoryRepo,
			Feeds:      feedRepo,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go sweepSessions(sweepCtx, sessions, cfg.Session.SweepInterval)

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server",
				slog.String("addr", cfg.ServerAddr),
				slog.String("url", cfg.ServerURL),
				slog.String("session_store", cfg.Session.Store),
			)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logger.Info("shutting down", slog.String("signal", sig.String()))

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

// newSessionStore picks the session backend named by the configuration.
func newSessionStore(db *bun.DB, c *config.Config) session.Store {
	if c.Session.Store == config.SessionStoreMemory {
		return session.NewMemoryStore(c.Session.MemoryCapacity, c.Session.Lifetime)
	}
	return repository.NewBunSessionRepository(db)
}

// sweepSessions purges expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions *session.Manager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				logger.Error("session sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", slog.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before serving (always on for SQLite)")
	rootCmd.AddCommand(serveCmd)
}
