package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"campus-queue/internal/auth"
	"campus-queue/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return err
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <uid> <role>",
	Short: "Assign admin, cashier or student to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := parseRole(args[1])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.SetRole(cmd.Context(), args[0], role); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], role)
		return err
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <email>",
	Short: "Stop an email from booking tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.Block(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", args[0])
		return err
	},
}

var (
	accountUID      string
	accountEmail    string
	accountPassword string
	accountVerified bool
)

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create a login account for the built-in token issuer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if accountEmail == "" || accountPassword == "" {
			return fmt.Errorf("--email and --password are required")
		}
		uid := accountUID
		if uid == "" {
			uid = uuid.NewString()
		}
		hash, err := auth.HashPassword(accountPassword)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		err = db.CreateAccount(cmd.Context(), models.Account{
			UID:           uid,
			Email:         accountEmail,
			PasswordHash:  hash,
			EmailVerified: accountVerified,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created account %s (%s)\n", uid, accountEmail)
		return err
	},
}

func init() {
	createAccountCmd.Flags().StringVar(&accountUID, "uid", "", "User ID (default random UUID)")
	createAccountCmd.Flags().StringVar(&accountEmail, "email", "", "Login email")
	createAccountCmd.Flags().StringVar(&accountPassword, "password", "", "Login password")
	createAccountCmd.Flags().BoolVar(&accountVerified, "verified", true, "Mark the email as verified")
}
