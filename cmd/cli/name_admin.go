package cli

// Admin helpers for the demo chain stub. A live Handshake node advances
// height, confirms transactions and derives NameState from consensus; since
// that collaborator is external to this engine (§6) and no live node is
// wired here, these commands let an operator drive the same demo chain
// stub core/chainstub.go exposes in tests, for an end-to-end dry run of the
// OPEN -> BID -> REVEAL -> ... lifecycle without a real network.

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/core"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Drive the demo chain stub directly (height, name state, fee rate)",
}

var adminSetHeightCmd = &cobra.Command{
	Use:   "set-height [height]",
	Args:  cobra.ExactArgs(1),
	Short: "Set the demo chain's current height",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		h, err := parseUint64(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			rt.chain.SetHeight(uint32(h))
			return nil
		})
	},
}

var adminOpenNameCmd = &cobra.Command{
	Use:   "open-name [name] [height]",
	Args:  cobra.ExactArgs(2),
	Short: "Register a name's auction-open height on the demo chain (simulates an OPEN confirming)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		h, err := parseUint64(args[1])
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			rt.chain.PutNameState(&core.NameState{NameHash: core.NameHash(args[0]), Height: uint32(h)})
			return nil
		})
	},
}

var adminSetFeeRateCmd = &cobra.Command{
	Use:   "set-fee-rate [sat-per-kb]",
	Args:  cobra.ExactArgs(1),
	Short: "Set the demo chain's fee-rate estimate",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		rate, err := parseUint64(args[0])
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			rt.chain.SetFeeRate(rate)
			return nil
		})
	},
}

var adminHeightCmd = &cobra.Command{
	Use:   "height",
	Args:  cobra.NoArgs,
	Short: "Print the demo chain's current height",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			h, err := rt.chain.Height(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{adminSetHeightCmd, adminOpenNameCmd, adminSetFeeRateCmd, adminHeightCmd} {
		var nf nameFlags
		nf.register(c)
		adminCmd.AddCommand(c)
	}
	nameCmd.AddCommand(adminCmd)
}
