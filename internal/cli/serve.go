package cli

import (
	"os"

	"github.com/spf13/cobra"

	"dragon-mcp/internal/app"
)

var serveWithMonitor bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().MCP(cmd.Context(), os.Stdin, os.Stdout)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authenticated HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{WithMonitor: serveWithMonitor})
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Take scheduled oracle health snapshots and alert on problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Monitor(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		applied, err := getApp().Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			cmd.Println("schema up to date")
		}
		for _, name := range applied {
			cmd.Printf("applied %s\n", name)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithMonitor, "monitor", false, "Also run the health snapshot monitor")
}
