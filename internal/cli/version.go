package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dragon-mcp/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", version.ServiceName, version.String())
	},
}
