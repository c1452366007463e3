package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vmstor/src/clone"
)

func newCloneCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "clone SOURCE[@LABEL] NEWGUEST",
		Short: "Clone a guest's full dataset tree into a new guest",
		Long: `Clone copies every dataset and volume under the source guest into a
new guest and regenerates its UUID and MAC addresses. Without @LABEL a
fresh snapshot is taken first, which requires the source to be stopped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			engine := clone.NewEngine(backend, newProber(backend.MountPath), slog.Default())
			if err := engine.Clone(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Cloned %s to %s\n", args[0], args[1])
			return nil
		},
	}
}
