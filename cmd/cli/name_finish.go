package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var finishCmd = &cobra.Command{
	Use:   "finish [name]",
	Short: "Redeem losing bids and register the winner in one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		resource, err := readResource(cmd)
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Finish(ctx, args[0], resource, nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var finishAllCmd = &cobra.Command{
	Use:   "finish-all",
	Short: "Pack every pending redeem/register this account holds into one transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, rejected, err := rt.disp.FinishAll(ctx, nf.account, nf.request())
			if err != nil {
				return err
			}
			printBatchResult(cmd, res, rejected)
			return nil
		})
	},
}

func init() {
	var nf1, nf2 nameFlags
	nf1.register(finishCmd)
	nf2.register(finishAllCmd)
	finishCmd.Flags().String("resource", "", "raw resource bytes")
	finishCmd.Flags().String("resource-file", "", "path to a file with the resource bytes")
	nameCmd.AddCommand(finishCmd, finishAllCmd)
}
