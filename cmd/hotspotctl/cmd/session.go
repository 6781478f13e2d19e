package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Control active RADIUS sessions",
}

var disconnectReason string

var sessionDisconnectCmd = &cobra.Command{
	Use:   "disconnect <username>",
	Short: "Disconnect all sessions for a username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := session.NewClient(client, logging.Nop())
		res, err := c.Disconnect(ctx, args[0], disconnectReason)
		if err != nil {
			return fmt.Errorf("disconnect failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %d session(s)\n", res.DisconnectedSessions)
		return nil
	},
}

var sessionBandwidthCmd = &cobra.Command{
	Use:   "bandwidth <username> <spec>",
	Short: "Update bandwidth for a username (spec like 1M/2M)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := session.NewClient(client, logging.Nop())
		res, err := c.UpdateBandwidth(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("bandwidth update failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d session(s)\n", res.UpdatedSessions)
		return nil
	},
}

var sessionExtendCmd = &cobra.Command{
	Use:   "extend <username> <seconds>",
	Short: "Extend the session timeout for a username",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("seconds must be a number: %w", err)
		}

		ctx, cancel := cmdContext()
		defer cancel()

		c := session.NewClient(client, logging.Nop())
		res, err := c.ExtendSession(ctx, args[0], seconds)
		if err != nil {
			return fmt.Errorf("extend failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extended %d session(s)\n", res.UpdatedSessions)
		return nil
	},
}

var sessionBulkDisconnectCmd = &cobra.Command{
	Use:   "bulk-disconnect <username>...",
	Short: "Disconnect several usernames concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := session.NewClient(client, logging.Nop())
		agg, err := c.BulkDisconnect(ctx, args, disconnectReason)
		if err != nil {
			return fmt.Errorf("bulk disconnect failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %d of %d username(s)\n",
			agg.SuccessCount, agg.TotalCount)
		for username, o := range agg.Results {
			if o.Err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", username, o.Err)
			}
		}
		if !agg.Success {
			return fmt.Errorf("all disconnects failed")
		}
		return nil
	},
}

func init() {
	sessionDisconnectCmd.Flags().StringVar(&disconnectReason, "reason", "", "disconnect reason (default Admin-Request)")
	sessionBulkDisconnectCmd.Flags().StringVar(&disconnectReason, "reason", "", "disconnect reason (default Admin-Request)")

	sessionCmd.AddCommand(sessionDisconnectCmd)
	sessionCmd.AddCommand(sessionBandwidthCmd)
	sessionCmd.AddCommand(sessionExtendCmd)
	sessionCmd.AddCommand(sessionBulkDisconnectCmd)
	rootCmd.AddCommand(sessionCmd)
}
