package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vmstor/src/safety"
	"vmstor/src/snapshot"
)

func newRollbackCmd(stdout, stderr io.Writer) *cobra.Command {
	var destroyNewer bool
	cmd := &cobra.Command{
		Use:   "rollback GUEST@LABEL",
		Short: "Roll a guest's full dataset tree back to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			question := fmt.Sprintf("Roll back %s, discarding changes since that snapshot?", args[0])
			if destroyNewer {
				question = fmt.Sprintf("Roll back %s, destroying any newer snapshots?", args[0])
			}
			ok, err := safety.Confirm(getSafetyOptions(cmd), cmd.InOrStdin(), stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Rollback aborted")
				return nil
			}
			mgr := snapshot.NewManager(backend, newProber(backend.MountPath), slog.Default())
			if err := mgr.Rollback(args[0], destroyNewer); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Rolled back to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&destroyNewer, "destroy-newer", "r", false, "Destroy snapshots newer than the target label")
	return cmd
}
