package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/settings"
	"github.com/spf13/cobra"
)

// NewSettingsCmd reads and edits the persisted station settings. A running
// station with settings.watch enabled picks edits up immediately.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change station settings",
	}
	cmd.AddCommand(newSettingsGetCmd(), newSettingsSetCmd())
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print settings, or one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settingsStore(cmd)
			if err != nil {
				return err
			}
			current, err := store.Load()
			if err != nil {
				return err
			}
			snap := current.Snapshot()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				v, ok := snap[args[0]]
				if !ok {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				data, _ := json.Marshal(v)
				fmt.Fprintln(out, string(data))
				return nil
			}
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(current)
			}

			keys := make([]string, 0, len(snap))
			for k := range snap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				data, _ := json.Marshal(snap[k])
				fmt.Fprintf(out, "%s %s\n", cli.DefaultTheme.Muted.Render(k+":"), data)
			}
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change one setting",
		Long:    "Values are parsed as JSON when possible and stored as strings otherwise.",
		Example: `watchpost settings set detect_weapons false`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settingsStore(cmd)
			if err != nil {
				return err
			}
			key, raw := args[0], args[1]

			var value interface{}
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				value = raw
			}

			if key == settings.KeyDetectWeapons {
				enabled, err := strconv.ParseBool(raw)
				if err != nil {
					return fmt.Errorf("%s must be true or false", key)
				}
				value = enabled
			}

			_, err = store.Update(func(s *settings.Settings) {
				if key == settings.KeyDetectWeapons {
					s.DetectWeapons = value.(bool)
					return
				}
				if s.Extra == nil {
					s.Extra = make(map[string]interface{})
				}
				s.Extra[key] = value
			})
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Success("Saved")
			pretty.Field(key, value)
			pretty.Path("file", store.Path())
			return nil
		},
	}
}

func settingsStore(cmd *cobra.Command) (*settings.Store, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(cfg.Settings.Path), nil
}
