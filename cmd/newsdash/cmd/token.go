package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TBMCG/RSS-feed/cmd/newsdash/cmd/cmdutil"
	"github.com/TBMCG/RSS-feed/internal/auth"
	"github.com/TBMCG/RSS-feed/internal/db/bunx"
	"github.com/TBMCG/RSS-feed/internal/repository"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Bearer token commands",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <subject>",
	Short: "Issue a bearer token for a registered user",
	Long: `Signs a bearer token for a user who has logged in at least once. The
token carries the user's stored email and name and is valid for 24 hours.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cmdutil.OpenDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		user, err := repository.NewBunUserRepository(db).GetByID(cmd.Context(), args[0])
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("no registered user with subject %q", args[0])
		}
		if err != nil {
			return err
		}

		codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey))
		if err != nil {
			return err
		}
		token, expiresAt, err := codec.Issue(user.ID, user.Email, user.Name)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a bearer token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := auth.NewTokenCodec([]byte(cfg.SecretKey))
		if err != nil {
			return err
		}
		claims, err := codec.Verify(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "subject:    %s\n", claims.Subject)
		fmt.Fprintf(out, "email:      %s\n", claims.Email)
		fmt.Fprintf(out, "name:       %s\n", claims.Name)
		fmt.Fprintf(out, "issued at:  %s\n", claims.IssuedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "expires at: %s\n", claims.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
	rootCmd.AddCommand(tokenCmd)
}
