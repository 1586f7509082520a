package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Status grades a chain or the whole oracle network.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusDegraded     Status = "degraded"
	StatusCritical     Status = "critical"
	StatusError        Status = "error"
	StatusInvalidPrice Status = "invalid_price"
)

// DefaultDeviationThreshold is the maximum cross-chain spread, in percent,
// still considered consistent.
var DefaultDeviationThreshold = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// ChainHealth is the per-chain entry of a HealthReport.
type ChainHealth struct {
	Status    Status           `json:"status"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Timestamp int64            `json:"timestamp,omitempty"`
	IsValid   bool             `json:"is_valid"`
	Source    string           `json:"source,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// PriceConsistency summarises the spread between valid chain prices.
type PriceConsistency struct {
	AveragePrice        decimal.Decimal            `json:"average_price"`
	MaxDeviationPercent decimal.Decimal            `json:"max_deviation_percent"`
	IsConsistent        bool                       `json:"is_consistent"`
	ChainPrices         map[string]decimal.Decimal `json:"chain_prices"`
}

// HealthReport is built fresh on every check.
type HealthReport struct {
	Timestamp        int64                  `json:"timestamp"`
	OverallStatus    Status                 `json:"overall_status"`
	Chains           map[string]ChainHealth `json:"chains"`
	PriceConsistency *PriceConsistency      `json:"price_consistency"`
	Alerts           []string               `json:"alerts"`

	// Order keeps the chain sequence of the check for tabular output.
	Order []string `json:"-"`
}

// MarshalJSON writes an empty price_consistency object when fewer than two
// chains had a valid price.
func (r HealthReport) MarshalJSON() ([]byte, error) {
	type plain HealthReport
	out := struct {
		plain
		PriceConsistency interface{} `json:"price_consistency"`
	}{plain: plain(r), PriceConsistency: struct{}{}}
	if r.PriceConsistency != nil {
		out.PriceConsistency = r.PriceConsistency
	}
	return json.Marshal(out)
}

// HealthyCount returns how many chains reported a valid price.
func (r HealthReport) HealthyCount() int {
	n := 0
	for _, c := range r.Chains {
		if c.Status == StatusHealthy {
			n++
		}
	}
	return n
}

// Aggregator polls a fixed set of chains and grades the oracle network.
type Aggregator struct {
	fetcher   Fetcher
	threshold decimal.Decimal
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAggregator constructs an aggregator. A non-positive threshold falls back
// to DefaultDeviationThreshold.
func NewAggregator(fetcher Fetcher, thresholdPct float64, logger zerolog.Logger) *Aggregator {
	threshold := decimal.NewFromFloat(thresholdPct)
	if !threshold.IsPositive() {
		threshold = DefaultDeviationThreshold
	}
	return &Aggregator{
		fetcher:   fetcher,
		threshold: threshold,
		logger:    logger.With().Str("component", "oracle_health").Logger(),
		now:       time.Now,
	}
}

// Threshold returns the deviation threshold in percent.
func (a *Aggregator) Threshold() decimal.Decimal {
	return a.threshold
}

// Check fetches every chain in order. A failing chain never prevents the
// others from being observed.
func (a *Aggregator) Check(ctx context.Context, chains []string) HealthReport {
	report := HealthReport{
		Timestamp: a.now().Unix(),
		Chains:    make(map[string]ChainHealth, len(chains)),
		Alerts:    []string{},
		Order:     make([]string, 0, len(chains)),
	}
	if len(chains) == 0 {
		report.OverallStatus = StatusError
		report.Alerts = append(report.Alerts, "no chains configured for health checks")
		return report
	}

	valid := make(map[string]decimal.Decimal, len(chains))
	for _, id := range chains {
		report.Order = append(report.Order, id)

		obs, err := a.fetcher.FetchPrice(ctx, id)
		if err != nil {
			a.logger.Warn().Err(err).Str("chain", id).Msg("oracle price fetch failed")
			report.Chains[id] = ChainHealth{Status: StatusError, Error: err.Error()}
			report.Alerts = append(report.Alerts, fmt.Sprintf("%s: %s", id, err.Error()))
			continue
		}

		price := obs.PriceUSD
		entry := ChainHealth{
			Price:     &price,
			Timestamp: obs.Timestamp,
			IsValid:   obs.IsValid,
			Source:    obs.Source,
		}
		if obs.IsValid {
			entry.Status = StatusHealthy
			valid[id] = price
		} else {
			entry.Status = StatusInvalidPrice
		}
		report.Chains[id] = entry
	}

	if len(valid) >= 2 {
		consistency := a.consistency(valid)
		report.PriceConsistency = &consistency
		if !consistency.IsConsistent {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("Price deviation too high: %s%%", consistency.MaxDeviationPercent.StringFixed(2)))
		}
	}

	report.OverallStatus = grade(len(valid), len(chains))

	a.logger.Debug().Str("status", string(report.OverallStatus)).
		Int("healthy", len(valid)).
		Int("total", len(chains)).
		Int("alerts", len(report.Alerts)).
		Msg("oracle health evaluated")
	return report
}

func (a *Aggregator) consistency(prices map[string]decimal.Decimal) PriceConsistency {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(prices))))

	maxDev := decimal.Zero
	if !avg.IsZero() {
		denom := avg.Abs()
		for _, p := range prices {
			dev := p.Sub(avg).Abs().Div(denom).Mul(hundred)
			if dev.GreaterThan(maxDev) {
				maxDev = dev
			}
		}
	}

	return PriceConsistency{
		AveragePrice:        avg,
		MaxDeviationPercent: maxDev,
		IsConsistent:        maxDev.LessThan(a.threshold),
		ChainPrices:         prices,
	}
}

// grade maps healthy/total to an overall status. Degraded requires at least
// half the chains (floor) to be healthy and never applies with zero healthy.
func grade(healthy, total int) Status {
	switch {
	case total == 0:
		return StatusError
	case healthy == total:
		return StatusHealthy
	case healthy == 0:
		return StatusCritical
	case healthy >= total/2:
		return StatusDegraded
	default:
		return StatusCritical
	}
}
