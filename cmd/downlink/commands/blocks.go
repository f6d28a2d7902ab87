package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/distributor"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/resolver"
)

func newBlocksCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks [type...]",
		Short: "List status block ids",
		Long: `List the ids of the status blocks a processor publishes, optionally
restricted to the given stage types.

Examples:
  downlink blocks --instance aqua
  downlink blocks path sink --instance aqua`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := global.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			names, err := distributor.New(client).BlockNames(cmd.Context(), args...)
			if err != nil {
				return unavailableError(cmd, client.InstanceName(), err)
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				printer.Warning(out, "no status blocks found\n")
				return nil
			}
			for _, name := range names {
				printer.Info(out, "%s\n", name)
			}
			return nil
		},
	}
}

func newItemsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items <block-id>",
		Short: "List the item names of one status block",
		Long: `List the names of the items in one status block, in declaration order.
The block may be named by any prefix of its id that matches only one block.

Examples:
  downlink items path.vc42 --instance aqua
  downlink items sink --instance aqua`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := global.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			d := distributor.New(client)
			_, names, err := d.ResolveItemNames(cmd.Context(), func(ids []string) (string, error) {
				return resolver.ResolveBlockID(ids, args[0])
			})
			if err != nil {
				var ambiguous *resolver.AmbiguousError
				if errors.As(err, &ambiguous) {
					return printer.Error(cmd.ErrOrStderr(),
						"ambiguous block id",
						resolver.FormatAmbiguousError(ambiguous),
						nil,
					)
				}
				if resolver.IsNotFoundError(err) {
					return printer.Error(cmd.ErrOrStderr(),
						fmt.Sprintf("status block '%s' not found", args[0]),
						err.Error(),
						[]string{fmt.Sprintf("List the available blocks:\n  downlink blocks --instance %s", client.InstanceName())},
					)
				}
				return unavailableError(cmd, client.InstanceName(), err)
			}

			for _, name := range names {
				printer.Info(cmd.OutOrStdout(), "%s\n", name)
			}
			return nil
		},
	}
}

// unavailableError maps a failed snapshot read to a user-facing error.
func unavailableError(cmd *cobra.Command, instance string, err error) error {
	if errors.Is(err, distributor.ErrUnavailable) {
		return noSnapshotError(cmd, instance)
	}
	return err
}
