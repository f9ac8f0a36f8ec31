package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newModelsCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to your API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			models := deps.Plugin.Initialize(cmd.Context())
			selected := deps.Service.Model()

			green := color.New(color.FgGreen, color.Bold)
			for _, m := range models {
				if m == selected {
					green.Fprintf(deps.Stdout, "* %s\n", m)
					continue
				}
				fmt.Fprintf(deps.Stdout, "  %s\n", m)
			}
			return nil
		},
	}
}
