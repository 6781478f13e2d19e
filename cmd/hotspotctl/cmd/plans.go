package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkutano/hotspot/internal/plan"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage the plan catalogue",
}

var plansListAll bool

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		source := plan.NewRemoteSource(client)
		plans, err := source.List(ctx, !plansListAll)
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}
		return printJSON(cmd, plans)
	},
}

var (
	planName      string
	planDesc      string
	planHours     int
	planPrice     float64
	planBandwidth string
	planDevices   int
	planPopular   bool
)

var plansCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		created, err := plan.NewAdmin(client).Create(ctx, &plan.Plan{
			Name:           planName,
			Description:    planDesc,
			DurationHours:  planHours,
			BasePrice:      planPrice,
			BandwidthLimit: planBandwidth,
			MaxDevices:     planDevices,
			IsActive:       true,
			IsPopular:      planPopular,
		})
		if err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}
		return printJSON(cmd, created)
	},
}

var plansToggleCmd = &cobra.Command{
	Use:   "toggle <plan-id>",
	Short: "Toggle a plan's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		toggled, err := plan.NewAdmin(client).Toggle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to toggle plan: %w", err)
		}
		return printJSON(cmd, toggled)
	},
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		if err := plan.NewAdmin(client).Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Plan %s deleted\n", args[0])
		return nil
	},
}

func init() {
	plansListCmd.Flags().BoolVar(&plansListAll, "all", false, "include inactive plans")

	plansCreateCmd.Flags().StringVar(&planName, "name", "", "plan name (required)")
	plansCreateCmd.Flags().StringVar(&planDesc, "description", "", "plan description")
	plansCreateCmd.Flags().IntVar(&planHours, "hours", 24, "duration in hours")
	plansCreateCmd.Flags().Float64Var(&planPrice, "price", 0, "base price for one device (required)")
	plansCreateCmd.Flags().StringVar(&planBandwidth, "bandwidth", "", "bandwidth limit, e.g. 5M/2M")
	plansCreateCmd.Flags().IntVar(&planDevices, "max-devices", 1, "maximum devices")
	plansCreateCmd.Flags().BoolVar(&planPopular, "popular", false, "mark as popular")
	_ = plansCreateCmd.MarkFlagRequired("name")
	_ = plansCreateCmd.MarkFlagRequired("price")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansCreateCmd)
	plansCmd.AddCommand(plansToggleCmd)
	plansCmd.AddCommand(plansDeleteCmd)
	rootCmd.AddCommand(plansCmd)
}
