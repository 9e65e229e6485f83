package users

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TBMCG/RSS-feed/internal/db/bunx"
	"github.com/TBMCG/RSS-feed/internal/db/models"
	"github.com/TBMCG/RSS-feed/internal/repository"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List users and their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		users, err := repository.NewBunUserRepository(db).List(cmd.Context())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SUBJECT\tEMAIL\tNAME\tROLES\tLAST LOGIN")
		for i := range users {
			printUserRow(w, &users[i])
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <subject>",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		user, err := repository.NewBunUserRepository(db).GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SUBJECT\tEMAIL\tNAME\tROLES\tLAST LOGIN")
		printUserRow(w, user)
		return w.Flush()
	},
}

func printUserRow(w *tabwriter.Writer, u *models.User) {
	lastLogin := "never"
	if u.LastLoginAt != nil {
		lastLogin = u.LastLoginAt.Format(time.RFC3339)
	}
	roles := strings.Join(u.RoleNames(), ",")
	if roles == "" {
		roles = "-"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, roles, lastLogin)
}
