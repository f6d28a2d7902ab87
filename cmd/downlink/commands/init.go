package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/scaffold"
)

func newInitCmd() *cobra.Command {
	var (
		force bool
		dir   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter downlink.yml",
		Long: `Write a starter processor configuration with a PN, VCDU, path and sink
stage chain reading CADUs from stdin.

Examples:
  downlink init
  downlink init --dir /etc/downlink --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffold.Initialize(dir, force); err != nil {
				return printer.Error(cmd.ErrOrStderr(),
					"initialization failed",
					err.Error(),
					nil,
				)
			}

			out := cmd.OutOrStdout()
			printer.Success(out, "created %s\n", filepath.Join(dir, scaffold.ConfigFile))
			printer.Info(out, "\nNext steps:\n")
			printer.Info(out, "  1. Set the stream inputs and the path stage's vcid\n")
			printer.Info(out, "  2. Run 'downlink run --config %s'\n", filepath.Join(dir, scaffold.ConfigFile))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing downlink.yml")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the configuration into")
	return cmd
}
