// Package cmd implements the watchpost command line.
package cmd

import (
	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/pkg/profiling"
	"github.com/grovetools/watchpost/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the watchpost command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("watchpost", "Security station for face and weapon recognition")
	root.Version = version.GetInfo().Short()
	new(profiling.Profiler).AddFlags(root)

	root.AddCommand(
		NewRunCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewLogsCmd(),
		NewSettingsCmd(),
		NewBackendCmd(),
		NewSchemaCmd(),
		cli.NewVersionCommand("watchpost"),
	)
	cli.ApplyStyledHelp(root)
	return root
}
