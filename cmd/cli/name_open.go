package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [name]",
	Short: "Open an auction for a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Open(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var openAllCmd = &cobra.Command{
	Use:   "open-all [name...]",
	Short: "Open auctions for many names in one transaction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.OpenMany(ctx, args, nf.account, nf.request())
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
	nf1.register(openCmd)
	nf2.register(openAllCmd)
	nameCmd.AddCommand(openCmd, openAllCmd)
}
