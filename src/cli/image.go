package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vmstor/src/image"
	"vmstor/src/safety"
)

func newImageCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Package guests into portable images and back",
	}
	cmd.AddCommand(newImageListCmd(stdout, stderr))
	cmd.AddCommand(newImageCreateCmd(stdout, stderr))
	cmd.AddCommand(newImageProvisionCmd(stdout, stderr))
	cmd.AddCommand(newImageDestroyCmd(stdout, stderr))
	return cmd
}

func imageStore(cmd *cobra.Command) (*image.Store, error) {
	backend, err := resolveBackend(cmd)
	if err != nil {
		return nil, err
	}
	return image.NewStore(backend, slog.Default()), nil
}

func newImageListCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := imageStore(cmd)
			if err != nil {
				return err
			}
			manifests, err := store.List()
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(manifests)
			case "table", "":
				return renderImageTable(stdout, manifests)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func renderImageTable(w io.Writer, manifests []image.Manifest) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tCREATED\tDESCRIPTION")
	for _, m := range manifests {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.UUID, m.Name, m.Created, m.Description)
	}
	return tw.Flush()
}

func newImageCreateCmd(stdout, stderr io.Writer) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create GUEST",
		Short: "Package a guest into a portable image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := imageStore(cmd)
			if err != nil {
				return err
			}
			m, err := store.Create(args[0], description, stderr)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Image created: %s\n", m.UUID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Image description")
	return cmd
}

func newImageProvisionCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "provision UUID NEWGUEST",
		Short: "Materialize a guest from a packaged image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := imageStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Provision(args[0], args[1], stderr); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Provisioned %s from image %s\n", args[1], args[0])
			return nil
		},
	}
}

func newImageDestroyCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy UUID",
		Short: "Remove an image and its data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := imageStore(cmd)
			if err != nil {
				return err
			}
			question := fmt.Sprintf("Destroy image %s and its data file?", args[0])
			ok, err := safety.Confirm(getSafetyOptions(cmd), cmd.InOrStdin(), stdout, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Destroy aborted")
				return nil
			}
			if err := store.Destroy(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Image destroyed: %s\n", args[0])
			return nil
		},
	}
}
