package users

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/bunx"
	"github.com/TBMCG/RSS-feed/internal/logging"
	"github.com/TBMCG/RSS-feed/internal/repository"
	"github.com/TBMCG/RSS-feed/internal/services/iam"
)

var (
	emailFlag  string
	nameFlag   string
	rolesInput []string
)

var syncCmd = &cobra.Command{
	Use:   "sync <subject>",
	Short: "Create or update a user and replace its roles",
	Long: `Applies the same reconciliation a login performs: the user is upserted and
its role assignments are replaced by the known subset of --role. The next
login overwrites them again from the identity provider's claims.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
		}
		for _, role := range rolesInput {
			if !auth.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q (known: %s)", role, strings.Join(auth.KnownRoles, ", "))
			}
		}

		cfg, db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		logger := logging.NewLogger(cfg.Environment, cfg.Debug)
		gate := auth.NewDomainGate(cfg.AllowedDomains)
		if !gate.Allowed(emailFlag) {
			logger.Warn("email domain is not allowed to sign in", "email", emailFlag)
		}

		reconciler := iam.NewRoleReconciler(repository.NewBunUserRepository(db), cfg.BootstrapAdminEmail, logger)
		user, err := reconciler.Reconcile(cmd.Context(), &auth.Identity{
			Subject: args[0],
			Email:   emailFlag,
			Name:    nameFlag,
		}, rolesInput)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) now has roles: %s\n",
			user.ID, user.Email, strings.Join(user.RoleNames(), ", "))
		return nil
	},
}
