package cli

import (
	"github.com/spf13/cobra"

	"vmstor/src/safety"
)

// addGlobalFlags adds the persistent flags every subcommand honors.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("location", "", "Storage location (e.g. zfs:zroot/vm or /var/vm); overrides config")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().Bool("dry-run", false, "Decline destructive actions instead of performing them")
	cmd.PersistentFlags().Bool("debug", false, "Log backend commands and diagnostics")
}

// getSafetyOptions reads the global flags into a safety.Options.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	return safety.Options{Yes: yes, DryRun: dry}
}
