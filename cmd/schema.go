package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/formconfig"
	"github.com/grovetools/watchpost/logging"
	"github.com/spf13/cobra"
)

// Schemas maps a document name to its schema generator.
var Schemas = map[string]func() ([]byte, error){
	"config":  config.GenerateSchema,
	"forms":   formconfig.Schema,
	"logging": logging.Schema,
}

// NewSchemaCmd prints the JSON Schema of a watchpost document.
func NewSchemaCmd() *cobra.Command {
	names := make([]string, 0, len(Schemas))
	for name := range Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	return &cobra.Command{
		Use:       "schema <" + strings.Join(names, "|") + ">",
		Short:     "Print the JSON Schema of a configuration document",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			generate, ok := Schemas[args[0]]
			if !ok {
				return fmt.Errorf("unknown document %q, expected one of %s", args[0], strings.Join(names, ", "))
			}
			data, err := generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
