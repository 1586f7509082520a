package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dragon-mcp/internal/app"
)

var (
	showLimit   int
	showDetails bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent health snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), app.ShowOptions{Limit: showLimit, Details: showDetails})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of snapshots to display")
	showCmd.Flags().BoolVar(&showDetails, "details", false, "Include per-chain observations")
}
