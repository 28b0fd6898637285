package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStylesCmd(root *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List conversation styles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}
			defaults, err := cfg.Defaults(registry)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range registry.All() {
				marker := " "
				if s.Key == defaults.Style {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-12s %s\n", marker, s.Key, s.Title)
				fmt.Fprintf(out, "  %-12s %s\n", "", s.Greeting)
			}
			return nil
		},
	}
}
