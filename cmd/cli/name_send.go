package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/core"
)

var sendCmd = &cobra.Command{
	Use:   "send [address] [value]",
	Short: "Send a plain, covenant-free payment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		to, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}
		value, err := parseUint64(args[1])
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Send(ctx, to, value, nf.account, nf.request())
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
	nf.register(sendCmd)
	nameCmd.AddCommand(sendCmd)
}
