package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var redeemCmd = &cobra.Command{
	Use:   "redeem [name]",
	Short: "Redeem a losing bid's lockup after the auction closes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Redeem(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var redeemAllCmd = &cobra.Command{
	Use:   "redeem-all",
	Short: "Pack every redeemable losing bid this account holds into one transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, rejected, err := rt.disp.RedeemAll(ctx, nf.account, nf.request())
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
	nf1.register(redeemCmd)
	nf2.register(redeemAllCmd)
	nameCmd.AddCommand(redeemCmd, redeemAllCmd)
}
