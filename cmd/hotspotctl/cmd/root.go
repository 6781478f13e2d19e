package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/logging"
)

var (
	// Global flags
	backendURL string
	stateFile  string
	timeout    time.Duration
	verbose    bool

	// Shared state set during PersistentPreRun
	tokens *auth.FileStore
	client *api.Client
)

// rootCmd is the base command for hotspotctl.
var rootCmd = &cobra.Command{
	Use:   "hotspotctl",
	Short: "Hotspot billing CLI — manage plans, RADIUS sessions, and SMS logs",
	Long: `Hotspotctl is the operator-facing CLI for the hotspot billing backend.
It logs in as an admin, manages the plan catalogue, issues RADIUS
session-control commands (disconnect, bandwidth, extend), and inspects
the SMS delivery log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if backendURL == "" {
			backendURL = os.Getenv("BACKEND_URL")
		}
		if backendURL == "" {
			return fmt.Errorf("backend URL is required (--backend or BACKEND_URL)")
		}

		path := stateFile
		if path == "" {
			path = defaultStateFile()
		}
		tokens = auth.NewFileStore(path)

		logger := logging.Nop()
		if verbose {
			logger = logging.New("debug", "text")
		}
		client = api.New(backendURL, tokens,
			api.WithTimeout(timeout),
			api.WithLogger(logger),
		)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL (defaults to BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "path to the auth state file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hotspotctl.json"
	}
	return filepath.Join(home, ".config", "hotspotctl", "state.json")
}

// cmdContext bounds one CLI operation.
func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout+5*time.Second)
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
