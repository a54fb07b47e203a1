package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize [name]",
	Short: "Finalize a pending transfer once its lockup has matured",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Finalize(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke [name]",
	Short: "Revoke a name, permanently closing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Revoke(ctx, args[0], nf.account, nf.request())
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
	nf1.register(finalizeCmd)
	nf2.register(revokeCmd)
	nameCmd.AddCommand(finalizeCmd, revokeCmd)
}
