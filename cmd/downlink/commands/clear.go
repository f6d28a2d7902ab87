package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/store"
)

func newClearCmd(global *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [item-id]",
		Short: "Reset clearable status items on a running processor",
		Long: `Ask a running processor to reset one status item, or with --all every
clearable item. Items marked not clearable keep their values.

Examples:
  downlink clear "path.vc42.Missing VCDUs" --instance aqua
  downlink clear --all --instance aqua`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return printer.Error(cmd.ErrOrStderr(),
					"nothing to clear",
					"Name exactly one item id, or pass --all.",
					[]string{
						"Clear one item:\n  downlink clear \"path.vc42.Missing VCDUs\"",
						"Clear every item:\n  downlink clear --all",
					},
				)
			}

			req := &store.ClearRequest{
				RequestedBy: requester(),
				RequestedAt: time.Now().UTC(),
			}
			if !all {
				req.ItemID = args[0]
			}
			if err := req.Validate(); err != nil {
				return printer.Error(cmd.ErrOrStderr(),
					"invalid item id",
					err.Error(),
					[]string{"Item ids have the form {type}.{name}.{item}, e.g. path.vc42.Idle VCDUs"},
				)
			}

			client, err := global.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			receivers, err := client.RequestClear(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if receivers == 0 {
				printer.Warning(out, "no processor is running for instance '%s'; nothing was cleared\n", client.InstanceName())
				return nil
			}

			target := req.ItemID
			if req.All() {
				target = "all clearable items"
			}
			printer.Success(out, "clear requested for %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every clearable item")
	return cmd
}

// requester identifies the client in clear and control requests.
func requester() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s@%s", os.Getenv("USER"), host)
}
