// Package main provides the entry point for the webnoise CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webnoise.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webnoise",
		Short: "Background web traffic noise generator",
		Long: `Webnoise generates random HTTP/DNS traffic noise in the background.

It starts from a configurable set of seed sites, follows randomly selected
links with human-like pacing, and periodically jumps back to a random seed,
making the operator's genuine browsing harder to single out in traffic
captures. The run ends when the configured wall-clock budget elapses or on
an interrupt signal.

Traffic can optionally be routed through a SOCKS5 proxy or an embedded Tor
daemon.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
