package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/core"
)

var bidCmd = &cobra.Command{
	Use:   "bid [name] [value] [lockup]",
	Short: "Place a blinded bid on a name in its bidding window",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		to, _ := cmd.Flags().GetString("to")
		value, err := parseUint64(args[1])
		if err != nil {
			return err
		}
		lockup, err := parseUint64(args[2])
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			addr, err := resolveOrNextReceive(rt, nf.account, to)
			if err != nil {
				return err
			}
			res, err := rt.disp.Bid(ctx, args[0], value, lockup, nf.account, addr, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

func resolveOrNextReceive(rt *nameRuntime, account uint32, hexAddr string) (core.Address, error) {
	if hexAddr != "" {
		return core.ParseAddress(hexAddr)
	}
	return rt.wallet.NextReceiveAddress(account)
}

// parseBidRequest parses one "--bid" entry of the form name=value:lockup.
func parseBidRequest(raw string) (core.BidRequest, error) {
	nameAndRest := strings.SplitN(raw, "=", 2)
	if len(nameAndRest) != 2 {
		return core.BidRequest{}, fmt.Errorf("bad --bid entry %q, want name=value:lockup", raw)
	}
	parts := strings.SplitN(nameAndRest[1], ":", 2)
	if len(parts) != 2 {
		return core.BidRequest{}, fmt.Errorf("bad --bid entry %q, want name=value:lockup", raw)
	}
	value, err := parseUint64(parts[0])
	if err != nil {
		return core.BidRequest{}, err
	}
	lockup, err := parseUint64(parts[1])
	if err != nil {
		return core.BidRequest{}, err
	}
	return core.BidRequest{Name: nameAndRest[0], Value: value, Lockup: lockup}, nil
}

var bidAllCmd = &cobra.Command{
	Use:   "bid-all",
	Short: "Place blinded bids on many names in one transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		raw, _ := cmd.Flags().GetStringArray("bid")
		if len(raw) == 0 {
			return errRequired("--bid")
		}
		bids := make([]core.BidRequest, 0, len(raw))
		for _, entry := range raw {
			req, err := parseBidRequest(entry)
			if err != nil {
				return err
			}
			bids = append(bids, req)
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.BidMany(ctx, bids, nf.account, nf.request())
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
	nf1.register(bidCmd)
	nf2.register(bidAllCmd)
	bidCmd.Flags().String("to", "", "output address (next receive address if empty)")
	bidAllCmd.Flags().StringArray("bid", nil, "name=value:lockup, repeatable")
	nameCmd.AddCommand(bidCmd, bidAllCmd)
}
