package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache [action]",
	Short: "Drop every cached idempotent result for an action (open, bid, reveal, ...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			rt.disp.ClearCache(args[0])
			return nil
		})
	},
}

var clearCacheKeyCmd = &cobra.Command{
	Use:   "clear-cache-key [action] [key]",
	Short: "Drop one cached idempotent result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			rt.disp.ClearCacheKey(args[0], args[1])
			return nil
		})
	},
}

func init() {
	var nf1, nf2 nameFlags
	nf1.register(clearCacheCmd)
	nf2.register(clearCacheKeyCmd)
	nameCmd.AddCommand(clearCacheCmd, clearCacheKeyCmd)
}
