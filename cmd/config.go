package cmd

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/shanewwarren/fresher-sub000/internal/config"
)

func (a *app) newConfigCommand() *cobra.Command {
	var example, sources bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration fresher would run with, after applying
.fresher/config.toml, .fresher/.env and FRESHER_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if example {
				fmt.Fprint(a.stdout, config.ExampleConfig())
				return nil
			}
			ws, err := a.loadConfig(nil)
			if err != nil {
				return err
			}
			if ws.File != "" {
				fmt.Fprintf(a.stdout, "# loaded from %s\n", ws.File)
			}
			if err := toml.NewEncoder(a.stdout).Encode(ws.Config); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			if sources && len(ws.Sources) > 0 {
				keys := make([]string, 0, len(ws.Sources))
				for k := range ws.Sources {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintln(a.stdout)
				fmt.Fprintln(a.stdout, "# overridden values")
				for _, k := range keys {
					fmt.Fprintf(a.stdout, "# %-32s %s\n", k, ws.Sources[k])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "Print an example config.toml with every option")
	cmd.Flags().BoolVar(&sources, "sources", false, "Show where each non-default value came from")
	return cmd
}
