// Package cli assembles the vmstor command tree. Each subcommand is a
// thin wrapper that resolves the storage backend and delegates to the
// lifecycle packages.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"vmstor/src/config"
)

// NewRootCmd returns the root cobra command for the vmstor CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vmstor",
		Short: "Manage ZFS-backed storage for virtual machine guests",
		Long: `vmstor handles the storage lifecycle of VM guests on a ZFS pool:
snapshots, rollback, cloning, and portable image export/import.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			level := slog.LevelInfo
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newSnapshotCmd(stdout, stderr))
	cmd.AddCommand(newRollbackCmd(stdout, stderr))
	cmd.AddCommand(newCloneCmd(stdout, stderr))
	cmd.AddCommand(newDatasetCmd(stdout, stderr))
	cmd.AddCommand(newImageCmd(stdout, stderr))
	cmd.AddCommand(newConfigCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit
// code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
