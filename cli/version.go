package cli

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/watchpost/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand prints the build information of name.
func NewVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: fmt.Sprintf("Print the version of %s", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			out := cmd.OutOrStdout()
			if GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "%s %s\n", DefaultTheme.Header.Render(name), info.Version)
			fmt.Fprintln(out, info.String())
			return nil
		},
	}
}
