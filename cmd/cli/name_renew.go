package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var renewCmd = &cobra.Command{
	Use:   "renew [name]",
	Short: "Renew a name before its expiry window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Renew(ctx, args[0], nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

func init() {
	var nf nameFlags
	nf.register(renewCmd)
	nameCmd.AddCommand(renewCmd)
}
