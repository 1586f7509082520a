package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/service"
)

// SimulateAlert 用给定的各链价格跑一次健康检查并直接发送告警。
// 未出现在 prices 中的监控链视为连接失败。
func (a *App) SimulateAlert(ctx context.Context, prices map[string]decimal.Decimal) (oracle.HealthReport, error) {
	if !a.Config.Alerting.Enabled {
		return oracle.HealthReport{}, errors.New("alerting 未启用")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return oracle.HealthReport{}, errors.New("未配置任何告警通道")
	}

	fetcher := oracle.StaticFetcher{
		Observations: make(map[string]oracle.Observation, len(prices)),
		Errors:       map[string]error{},
	}
	now := time.Now().UTC()
	for _, id := range a.Config.Oracle.HealthChains {
		p, ok := prices[id]
		if !ok {
			fetcher.Errors[id] = fmt.Errorf("simulated outage on %s", id)
			continue
		}
		fetcher.Observations[id] = oracle.Observation{
			PriceUSD:  p,
			IsValid:   p.IsPositive(),
			Timestamp: now.Unix(),
			Source:    "simulated",
		}
	}

	agg := oracle.NewAggregator(fetcher, a.Config.Oracle.DeviationThresholdPct, a.Logger)
	report := agg.Check(ctx, a.Config.Oracle.HealthChains)
	if !service.NeedsAlert(report) {
		a.Logger.Info().Msg("simulated report is healthy; no alert sent")
		return report, nil
	}

	note := service.NotificationFor(now.Truncate(a.Config.Scheduler.Interval), report, agg.Threshold())
	note.Channels = a.Config.Alerting.Channels
	note.AdditionalMsg = "(simulated)"
	if err := notifier.Notify(ctx, note); err != nil {
		return report, fmt.Errorf("dispatch simulated alert: %w", err)
	}
	return report, nil
}
