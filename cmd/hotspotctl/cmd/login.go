package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/logging"
)

var (
	loginEmail    string
	loginPassword string
	loginCode     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the billing backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		svc := auth.NewService(client, tokens, logging.Nop())
		admin, err := svc.Login(ctx, loginEmail, loginPassword, loginCode)
		if errors.Is(err, auth.ErrTwoFactorRequired) {
			return fmt.Errorf("two-factor code required, retry with --code")
		}
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", admin.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored auth token",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := auth.NewService(client, tokens, logging.Nop())
		if err := svc.Logout(); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the cached admin profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := auth.NewService(client, tokens, logging.Nop())
		admin, ok := svc.CachedAdmin()
		if !ok {
			return fmt.Errorf("not logged in")
		}
		return printJSON(cmd, admin)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Request or confirm a password reset",
}

var resetRequestCmd = &cobra.Command{
	Use:   "request <email>",
	Short: "Send a reset link to an admin email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		svc := auth.NewService(client, tokens, logging.Nop())
		if err := svc.RequestReset(ctx, args[0]); err != nil {
			return fmt.Errorf("reset request failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Reset link sent if the account exists")
		return nil
	},
}

var resetConfirmCmd = &cobra.Command{
	Use:   "confirm <reset-token> <new-password>",
	Short: "Set a new password using a reset token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		svc := auth.NewService(client, tokens, logging.Nop())
		if err := svc.ConfirmReset(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated, log in again")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "admin email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "admin password (required)")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "six-digit two-factor code")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	resetCmd.AddCommand(resetRequestCmd)
	resetCmd.AddCommand(resetConfirmCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(resetCmd)
}
