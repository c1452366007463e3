package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change tool configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Show all settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			settings := viper.AllSettings()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(stdout, "%s: %v\n", k, settings[k])
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if v := viper.Get(args[0]); v != nil {
				fmt.Fprintln(stdout, v)
			} else {
				fmt.Fprintln(stdout, "Not set")
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting and write the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set(args[0], args[1])
			if err := viper.WriteConfig(); err != nil {
				return viper.SafeWriteConfig()
			}
			return nil
		},
	})

	return cmd
}
