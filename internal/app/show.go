package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"dragon-mcp/internal/storage"
)

// Show prints recent health snapshots.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	defer closeStore()

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(w, "no snapshots found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeSnapshotHeader(tw)
	for _, snap := range snapshots {
		writeSnapshotRow(tw, snap)
		if !opts.Details {
			continue
		}
		obs, err := store.ListObservations(ctx, snap.ID)
		if err != nil {
			return err
		}
		for _, o := range obs {
			price := "-"
			if o.PriceUSD != nil {
				price = formatDecimal(*o.PriceUSD, 6)
			}
			errMsg := ""
			if o.Error != nil {
				errMsg = sanitizeInline(*o.Error)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t\t\t%s\n", o.Chain, o.Status, price, o.Source, errMsg)
		}
	}
	return tw.Flush()
}

func writeSnapshotHeader(w io.Writer) {
	fmt.Fprintln(w, "Time (UTC)\tStatus\tHealthy\tAverage\tDeviation%\tConsistent\tAlerts")
}

func writeSnapshotRow(w io.Writer, snap storage.HealthSnapshot) {
	consistent := "-"
	if snap.IsConsistent != nil {
		consistent = strconv.FormatBool(*snap.IsConsistent)
	}
	fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
		snap.Bucket.UTC().Format(time.RFC3339),
		snap.OverallStatus,
		snap.HealthyChains, snap.TotalChains,
		optionalDecimal(snap.AveragePrice, 6),
		optionalDecimal(snap.MaxDeviationPct, 2),
		consistent,
		sanitizeInline(strings.Join(snap.Alerts, "; ")),
	)
}

func optionalDecimal(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return formatDecimal(*d, places)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(cleaned, "\r", " ")
}
