package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vmstor/src/snapshot"
	"vmstor/src/token"
)

func newSnapshotCmd(stdout, stderr io.Writer) *cobra.Command {
	var force, list bool
	cmd := &cobra.Command{
		Use:   "snapshot GUEST[@LABEL]",
		Short: "Create a recursive snapshot of a guest's dataset tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			mgr := snapshot.NewManager(backend, newProber(backend.MountPath), slog.Default())
			if list {
				tok, err := token.Parse(args[0])
				if err != nil {
					return err
				}
				labels, err := mgr.List(tok.Name)
				if err != nil {
					return err
				}
				for _, label := range labels {
					fmt.Fprintln(stdout, label)
				}
				return nil
			}
			label, err := mgr.Create(args[0], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Snapshot created: %s\n", label)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Snapshot even while the guest is running")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List the guest's snapshots instead of creating one")
	return cmd
}
