package cli

import (
	"context"
	"io/ioutil"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Publish a new resource record for a name (registers it first if still unregistered)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var nf nameFlags
		resource, err := readResource(cmd)
		if err != nil {
			return err
		}
		return withRuntime(cmd, &nf, func(ctx context.Context, rt *nameRuntime) error {
			res, err := rt.disp.Update(ctx, args[0], resource, nf.account, nf.request())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		})
	},
}

func readResource(cmd *cobra.Command) ([]byte, error) {
	file, _ := cmd.Flags().GetString("resource-file")
	raw, _ := cmd.Flags().GetString("resource")
	if file != "" {
		return ioutil.ReadFile(file)
	}
	return []byte(raw), nil
}

func init() {
	var nf nameFlags
	nf.register(updateCmd)
	updateCmd.Flags().String("resource", "", "raw resource bytes")
	updateCmd.Flags().String("resource-file", "", "path to a file with the resource bytes")
	nameCmd.AddCommand(updateCmd)
}
