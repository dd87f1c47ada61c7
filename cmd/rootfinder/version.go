package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/rootfinder/
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rootfinder version",
	Args:  cobra.NoArgs,
	// No configuration or store is needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}
