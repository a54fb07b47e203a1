package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var revealCmd = &cobra.Command{
	Use:   "reveal [name]",
	Short: "Reveal a previously placed bid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Reveal(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var revealAllCmd = &cobra.Command{
	Use:   "reveal-all",
	Short: "Pack every revealable bid this account holds into one transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, rejected, err := rt.disp.RevealAll(ctx, nf.account, nf.request())
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
	nf1.register(revealCmd)
	nf2.register(revealAllCmd)
	nameCmd.AddCommand(revealCmd, revealAllCmd)
}
