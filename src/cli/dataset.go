package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"vmstor/src/config"
	"vmstor/src/safety"
	"vmstor/src/snapshot"
)

func newDatasetCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Work with guest datasets directly",
	}
	cmd.AddCommand(newDatasetListCmd(stdout, stderr))
	cmd.AddCommand(newDatasetCreateCmd(stdout, stderr))
	cmd.AddCommand(newDatasetVolumeCmd(stdout, stderr))
	cmd.AddCommand(newDatasetDestroyCmd(stdout, stderr))
	return cmd
}

func newDatasetListCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list GUEST",
		Short: "Print every dataset and volume under a guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			mgr := snapshot.NewManager(backend, newProber(backend.MountPath), slog.Default())
			tree, err := mgr.Tree(args[0])
			if err != nil {
				return err
			}
			for _, dataset := range tree {
				fmt.Fprintln(stdout, dataset)
			}
			return nil
		},
	}
}

func newDatasetCreateCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a dataset under the storage root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			if opts == "" {
				opts = config.DatasetOpts()
			}
			if err := backend.Create(args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Dataset created: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts, "options", "o", "", "Creation options, e.g. compression=lz4,atime=off")
	return cmd
}

func newDatasetVolumeCmd(stdout, stderr io.Writer) *cobra.Command {
	var sparse bool
	var opts string
	cmd := &cobra.Command{
		Use:   "volume NAME SIZE",
		Short: "Create a volume (zvol) under the storage root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			if err := backend.CreateVolume(args[0], args[1], sparse, opts); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Volume created: %s (%s)\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&sparse, "sparse", "s", false, "Reserve no space up front")
	cmd.Flags().StringVarP(&opts, "options", "o", "", "Creation options, e.g. volblocksize=64K")
	return cmd
}

func newDatasetDestroyCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy NAME",
		Short: "Destroy a dataset and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := resolveBackend(cmd)
			if err != nil {
				return err
			}
			question := fmt.Sprintf("Destroy dataset %s and everything under it?", args[0])
			ok, err := safety.Confirm(getSafetyOptions(cmd), cmd.InOrStdin(), stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Destroy aborted")
				return nil
			}
			if err := backend.Destroy(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Dataset destroyed: %s\n", args[0])
			return nil
		},
	}
}
