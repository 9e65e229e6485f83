package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/TBMCG/RSS-feed/cmd/newsdash/cmd/cmdutil"
	"github.com/TBMCG/RSS-feed/internal/config"
)

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and provision dashboard users",
	Long: `Commands for inspecting users and their role assignments directly from the
server. Role assignments are normally rewritten from the identity provider
on every login.`,
}

func init() {
	syncCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user (required)")
	syncCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the user")
	syncCmd.Flags().StringSliceVar(&rolesInput, "role", []string{}, "Role(s) to assign: admin, editor, viewer")

	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(showCmd)
	UsersCmd.AddCommand(syncCmd)
}

// openDB loads the configuration and connects to its database.
func openDB(ctx context.Context) (*config.Config, *bun.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := cmdutil.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
