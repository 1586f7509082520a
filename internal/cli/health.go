package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	healthJSON bool
	callArgs   string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check oracle health across the monitored chains once",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Health(cmd.Context(), cmd.OutOrStdout(), healthJSON)
		return err
	},
}

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke one tool with JSON arguments and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Call(cmd.Context(), cmd.OutOrStdout(), args[0], json.RawMessage(callArgs))
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the report as JSON")
	callCmd.Flags().StringVar(&callArgs, "args", "{}", "Tool arguments as a JSON object")
}
