// SkyRoute - MQTT publish/subscribe router
//
// This is the main entry point for the skyroute host process. It connects to
// a broker, routes inbound messages to registered subscribers and serves an
// operations API. Subscribers registered in Main mode run on the process main
// goroutine.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "skyroute",
		Short:         "MQTT publish/subscribe router",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default $SKYROUTE_CONFIG or "+defaultConfigPath+")")
	root.AddCommand(newRunCmd(&configPath), newJournalCmd(&configPath), newVersionCmd())
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and route messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			opts.configPath = *configPath
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.transport, "transport", transportPaho, "broker transport: paho or memory")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skyroute %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// The flag wins, then SKYROUTE_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("SKYROUTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
