package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "livebind",
		Short: "Live value bindings for server-driven UIs",
		Long: `livebind pushes the latest values of asynchronous producers to
browsers over WebSocket.

Producers are subscribed outside the tracked event loop, so endless
sources (tickers, live feeds) never block idle detection, while every
delivered value re-enters the loop before the UI is refreshed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("livebind %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
