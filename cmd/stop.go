package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/grovetools/watchpost/internal/pidfile"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/spf13/cobra"
)

// NewStopCmd signals a running station to shut down.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Station is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(fmt.Sprintf("Sent SIGTERM to process %d", pid))
			return nil
		},
	}
}
