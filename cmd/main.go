// Rein - remote trackpad input relay
// Drives the host's pointer and keyboard from a phone or another machine over WebSocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "0.3.0"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rein",
		Short: "Remote trackpad input relay",
		Long: `Rein relays pointer, scroll, zoom and keyboard input from a remote
client to the machine running "rein host".

Clients connect to ws://<host>:<port>/ws and send JSON frames.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		hostCmd(),
		clientCmd(),
		discoverCmd(),
		autostartCmd(),
		versionCmd(),
	)
	return rootCmd
}
