package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/sms"
)

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Inspect the SMS delivery log",
}

var (
	smsLogsPhone  string
	smsLogsStatus string
	smsLogsLimit  int
)

var smsLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List sent SMS messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		c := sms.NewClient(client, logging.Nop())
		msgs, err := c.List(ctx, sms.ListFilter{
			PhoneNumber: smsLogsPhone,
			Status:      smsLogsStatus,
			Limit:       smsLogsLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list sms logs: %w", err)
		}
		return printJSON(cmd, msgs)
	},
}

func init() {
	smsLogsCmd.Flags().StringVar(&smsLogsPhone, "phone", "", "filter by phone number")
	smsLogsCmd.Flags().StringVar(&smsLogsStatus, "status", "", "filter by delivery status")
	smsLogsCmd.Flags().IntVar(&smsLogsLimit, "limit", 50, "maximum messages to return")

	smsCmd.AddCommand(smsLogsCmd)
	rootCmd.AddCommand(smsCmd)
}
