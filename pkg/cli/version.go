package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/domtaint/pkg/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "domtaint %s (%s)\n", config.Version, config.Author)
		},
	}
}
