package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewBackendCmd exercises the configured backend scripts without the views.
func NewBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Check the backend scripts",
	}
	cmd.AddCommand(newBackendCheckCmd(), newBackendLoginCmd())
	return cmd
}

func newBackendCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every backend script exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			runner := command.NewRunner(cfg.Backend, nil)
			t := cli.DefaultTheme
			out := cmd.OutOrStdout()

			scripts := map[string]string{"recognition": cfg.Backend.StreamingScript}
			for name, script := range cfg.Backend.Scripts {
				scripts[name] = script
			}
			names := make([]string, 0, len(scripts))
			for name := range scripts {
				names = append(names, name)
			}
			sort.Strings(names)

			missing := 0
			for _, name := range names {
				path := runner.ScriptPath(scripts[name])
				mark := t.Success.Render("ok     ")
				if _, err := os.Stat(path); err != nil {
					mark = t.Error.Render("missing")
					missing++
				}
				fmt.Fprintf(out, "%s %-15s %s\n", mark, name, t.Muted.Render(path))
			}
			if missing > 0 {
				return fmt.Errorf("%d backend script(s) missing", missing)
			}
			return nil
		},
	}
}

func newBackendLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Try credentials against the authenticate script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			username := args[0]
			if err := command.Validate(command.ArgUsername, username); err != nil {
				return err
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			runner := command.NewRunner(cfg.Backend, nil)
			result, err := runner.Run(cmd.Context(), config.CommandAuthenticate, username, password)
			if err != nil {
				return err
			}

			var reply struct {
				Role string `json:"role"`
				Mode string `json:"mode"`
			}
			if err := result.Decode(&reply); err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Success("Authenticated")
			pretty.Field("role", reply.Role)
			pretty.Field("mode", reply.Mode)
			pretty.Field("took", result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
