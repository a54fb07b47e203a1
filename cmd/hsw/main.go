package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/namebasehq/hsd/cmd/cli"
)

func main() {
	root := &cobra.Command{
		Use:   "hsw",
		Short: "hsw — wallet-side transaction engine for Handshake names",
	}
	cli.RegisterWallet(root)
	cli.RegisterName(root)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
