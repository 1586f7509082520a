package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"dragon-mcp/internal/oracle"
)

// Health runs one oracle health check and prints it as a table or JSON.
func (a *App) Health(ctx context.Context, w io.Writer, asJSON bool) (oracle.HealthReport, error) {
	client, err := a.newClient()
	if err != nil {
		return oracle.HealthReport{}, err
	}
	defer client.Close()

	svc := a.newOracle(client)
	report := svc.Health(ctx)
	if asJSON {
		return report, writeJSON(w, report)
	}
	fmt.Fprintf(w, "Chains: %s (primary %s)\n", strings.Join(svc.HealthChains(), ", "), client.Registry().Primary())
	return report, writeReport(w, report)
}

// Call runs a single tool with JSON arguments and prints the JSON result.
func (a *App) Call(ctx context.Context, w io.Writer, name string, args json.RawMessage) error {
	ts, client, err := a.newToolset()
	if err != nil {
		return err
	}
	defer client.Close()

	out, err := ts.CallRaw(ctx, name, args)
	if err != nil {
		return err
	}
	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, report oracle.HealthReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Overall: %s (%d/%d healthy)\n\n", report.OverallStatus, report.HealthyCount(), len(report.Chains))
	fmt.Fprintln(tw, "Chain\tStatus\tPrice (USD)\tSource\tError")
	for _, id := range report.Order {
		c := report.Chains[id]
		price := "-"
		if c.Price != nil {
			price = formatDecimal(*c.Price, 6)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id, c.Status, price, c.Source, sanitizeInline(c.Error))
	}
	if pc := report.PriceConsistency; pc != nil {
		fmt.Fprintf(tw, "\nAverage: %s  Max deviation: %s%%  Consistent: %t\n",
			formatDecimal(pc.AveragePrice, 6), formatDecimal(pc.MaxDeviationPercent, 2), pc.IsConsistent)
	}
	for _, alert := range report.Alerts {
		fmt.Fprintf(tw, "ALERT: %s\n", alert)
	}
	return tw.Flush()
}
