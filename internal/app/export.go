package app

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"dragon-mcp/internal/storage"
)

// Export renders historical snapshots as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapshots, err := store.ListSnapshotsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsample(snapshots, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snapshots)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writeSnapshotsCSV(w, downsampled) }); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeFile(opts.PNGPath, func(w io.Writer) error { return writeSnapshotsPNG(w, downsampled) }); err != nil {
			return err
		}
	}
	return nil
}

func downsample(snapshots []storage.HealthSnapshot, max int) []storage.HealthSnapshot {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}
	if max == 1 {
		return snapshots[len(snapshots)-1:]
	}

	result := make([]storage.HealthSnapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(w io.Writer, snapshots []storage.HealthSnapshot) error {
	writer := csv.NewWriter(w)

	header := []string{"bucket_ts", "overall_status", "healthy_chains", "total_chains", "average_price", "max_deviation_pct", "is_consistent", "alerts"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snapshots {
		avg, dev, consistent := "", "", ""
		if snap.AveragePrice != nil {
			avg = snap.AveragePrice.String()
		}
		if snap.MaxDeviationPct != nil {
			dev = snap.MaxDeviationPct.String()
		}
		if snap.IsConsistent != nil {
			consistent = strconv.FormatBool(*snap.IsConsistent)
		}
		record := []string{
			snap.Bucket.UTC().Format(time.RFC3339),
			snap.OverallStatus,
			strconv.Itoa(snap.HealthyChains),
			strconv.Itoa(snap.TotalChains),
			avg,
			dev,
			consistent,
			strings.Join(snap.Alerts, "; "),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeSnapshotsPNG charts average price and deviation. Snapshots with fewer
// than two valid prices have no average and are skipped.
func writeSnapshotsPNG(w io.Writer, snapshots []storage.HealthSnapshot) error {
	var (
		x         []time.Time
		average   []float64
		deviation []float64
	)
	for _, snap := range snapshots {
		if snap.AveragePrice == nil || snap.MaxDeviationPct == nil {
			continue
		}
		x = append(x, snap.Bucket)
		average = append(average, snap.AveragePrice.InexactFloat64())
		deviation = append(deviation, snap.MaxDeviationPct.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("not enough snapshots with prices to chart")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Average price (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.6f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Max deviation (%)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Average price",
				XValues: x,
				YValues: average,
			},
			chart.TimeSeries{
				Name:    "Max deviation %",
				XValues: x,
				YValues: deviation,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
