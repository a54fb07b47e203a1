package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/core"
)

var transferCmd = &cobra.Command{
	Use:   "transfer [name]",
	Short: "Begin transferring a name to a new owner address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		toHex, _ := cmd.Flags().GetString("to")
		version, _ := cmd.Flags().GetUint8("to-version")
		if toHex == "" {
			return errRequired("--to")
		}
		addr, err := core.ParseAddress(toHex)
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Transfer(ctx, args[0], version, addr, nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [name]",
	Short: "Cancel a pending transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Cancel(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

func init() {
	var nf1, nf2 nameFlags
	nf1.register(transferCmd)
	transferCmd.Flags().String("to", "", "destination address (required)")
	transferCmd.Flags().Uint8("to-version", 0, "destination address version")
	nf2.register(cancelCmd)
	nameCmd.AddCommand(transferCmd, cancelCmd)
}
