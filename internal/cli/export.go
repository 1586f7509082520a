package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dragon-mcp/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export health snapshots as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		from, err := parseTimeFlag("from", exportFrom, now)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", exportTo, now)
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			From:      from,
			To:        to,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

// parseTimeFlag accepts RFC3339 or a duration back from now such as "24h".
func parseTimeFlag(name, raw string, now time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid --%s value %q: want RFC3339 or a positive duration", name, raw)
	}
	t := now.Add(-d)
	return &t, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start (RFC3339 or duration ago, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End (RFC3339 or duration ago, exclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
