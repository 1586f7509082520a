package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var healthChains = []string{"sonic", "ethereum", "arbitrum", "base"}

func obs(price string, valid bool) Observation {
	return Observation{PriceUSD: decimal.RequireFromString(price), IsValid: valid, Timestamp: 1700000000, Source: "test"}
}

func newTestAggregator(f Fetcher) *Aggregator {
	a := NewAggregator(f, 5.0, zerolog.Nop())
	a.now = func() time.Time { return time.Unix(1700000100, 0) }
	return a
}

func TestDeviationAboveThreshold(t *testing.T) {
	f := StaticFetcher{Observations: map[string]Observation{
		"sonic":    obs("1.00", true),
		"ethereum": obs("1.00", true),
		"arbitrum": obs("1.10", true),
	}}
	report := newTestAggregator(f).Check(context.Background(), []string{"sonic", "ethereum", "arbitrum"})

	pc := report.PriceConsistency
	if pc == nil {
		t.Fatal("至少两个有效价格时应计算一致性")
	}
	if got := pc.AveragePrice.StringFixed(4); got != "1.0333" {
		t.Fatalf("平均价格不正确: %s", got)
	}
	if got := pc.MaxDeviationPercent.StringFixed(2); got != "6.45" {
		t.Fatalf("最大偏差不正确: %s", got)
	}
	if pc.IsConsistent {
		t.Fatal("偏差超过阈值时不应一致")
	}
	if len(report.Alerts) != 1 || report.Alerts[0] != "Price deviation too high: 6.45%" {
		t.Fatalf("告警不正确: %v", report.Alerts)
	}
	if report.OverallStatus != StatusHealthy {
		t.Fatalf("所有链有效时状态应为 healthy, got %s", report.OverallStatus)
	}
	if report.Timestamp != 1700000100 {
		t.Fatalf("时间戳不正确: %d", report.Timestamp)
	}
}

func TestDeviationBelowThreshold(t *testing.T) {
	f := StaticFetcher{Observations: map[string]Observation{
		"sonic":    obs("1.00", true),
		"ethereum": obs("1.01", true),
	}}
	report := newTestAggregator(f).Check(context.Background(), []string{"sonic", "ethereum"})

	pc := report.PriceConsistency
	if pc == nil {
		t.Fatal("应计算一致性")
	}
	if got := pc.MaxDeviationPercent.StringFixed(4); got != "0.4975" {
		t.Fatalf("最大偏差不正确: %s", got)
	}
	if !pc.IsConsistent {
		t.Fatal("偏差低于阈值时应一致")
	}
	if len(report.Alerts) != 0 {
		t.Fatalf("不应产生告警: %v", report.Alerts)
	}
}

func TestSingleValidPriceSkipsConsistency(t *testing.T) {
	f := StaticFetcher{
		Observations: map[string]Observation{"sonic": obs("1.00", true)},
		Errors:       map[string]error{"ethereum": errors.New("timeout")},
	}
	report := newTestAggregator(f).Check(context.Background(), []string{"sonic", "ethereum"})
	if report.PriceConsistency != nil {
		t.Fatal("仅一个有效价格时不应计算一致性")
	}
}

func TestOverallStatus(t *testing.T) {
	down := errors.New("connection refused")
	cases := []struct {
		name   string
		f      StaticFetcher
		chains []string
		want   Status
		alerts int
	}{
		{
			name: "两条健康为降级",
			f: StaticFetcher{
				Observations: map[string]Observation{
					"sonic":    obs("1.00", true),
					"ethereum": obs("1.00", true),
					"arbitrum": obs("1.00", false),
				},
				Errors: map[string]error{"base": down},
			},
			chains: healthChains,
			want:   StatusDegraded,
			alerts: 1,
		},
		{
			name: "全部失败为严重",
			f: StaticFetcher{Errors: map[string]error{
				"sonic": down, "ethereum": down, "arbitrum": down, "base": down,
			}},
			chains: healthChains,
			want:   StatusCritical,
			alerts: 4,
		},
		{
			name: "一条健康为严重",
			f: StaticFetcher{
				Observations: map[string]Observation{"sonic": obs("1.00", true)},
				Errors:       map[string]error{"ethereum": down, "arbitrum": down, "base": down},
			},
			chains: healthChains,
			want:   StatusCritical,
			alerts: 3,
		},
		{
			name:   "单链失败为严重",
			f:      StaticFetcher{Errors: map[string]error{"sonic": down}},
			chains: []string{"sonic"},
			want:   StatusCritical,
			alerts: 1,
		},
		{
			name: "三条中一条健康为降级",
			f: StaticFetcher{
				Observations: map[string]Observation{"sonic": obs("1.00", true), "ethereum": obs("1.00", false), "base": obs("1.00", false)},
			},
			chains: []string{"sonic", "ethereum", "base"},
			want:   StatusDegraded,
		},
		{
			name:   "空链集合为错误",
			chains: nil,
			want:   StatusError,
			alerts: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := newTestAggregator(tc.f).Check(context.Background(), tc.chains)
			if report.OverallStatus != tc.want {
				t.Fatalf("状态应为 %s, got %s", tc.want, report.OverallStatus)
			}
			if len(report.Alerts) != tc.alerts {
				t.Fatalf("告警数量应为 %d, got %v", tc.alerts, report.Alerts)
			}
		})
	}
}

func TestFailingChainDoesNotHideOthers(t *testing.T) {
	f := StaticFetcher{
		Observations: map[string]Observation{
			"sonic":    obs("1.00", true),
			"arbitrum": obs("1.02", true),
			"base":     obs("0.99", true),
		},
		Errors: map[string]error{"ethereum": errors.New("dial tcp: i/o timeout")},
	}
	report := newTestAggregator(f).Check(context.Background(), healthChains)

	for _, id := range []string{"sonic", "arbitrum", "base"} {
		entry, ok := report.Chains[id]
		if !ok || entry.Status != StatusHealthy || entry.Price == nil {
			t.Fatalf("%s 的观测不应丢失: %+v", id, entry)
		}
	}
	eth := report.Chains["ethereum"]
	if eth.Status != StatusError || eth.Error == "" {
		t.Fatalf("ethereum 应为错误状态: %+v", eth)
	}
	if len(report.Alerts) != 1 || report.Alerts[0] != "ethereum: dial tcp: i/o timeout" {
		t.Fatalf("告警不正确: %v", report.Alerts)
	}
	if got := len(report.PriceConsistency.ChainPrices); got != 3 {
		t.Fatalf("一致性应包含三个价格, got %d", got)
	}
	if report.HealthyCount() != 3 {
		t.Fatalf("健康链数量不正确: %d", report.HealthyCount())
	}
	if len(report.Order) != 4 || report.Order[1] != "ethereum" {
		t.Fatalf("链顺序不正确: %v", report.Order)
	}
}

func TestZeroAverageIsConsistent(t *testing.T) {
	f := StaticFetcher{Observations: map[string]Observation{
		"sonic":    obs("0", true),
		"ethereum": obs("0", true),
	}}
	report := newTestAggregator(f).Check(context.Background(), []string{"sonic", "ethereum"})
	if !report.PriceConsistency.MaxDeviationPercent.IsZero() || !report.PriceConsistency.IsConsistent {
		t.Fatalf("平均价格为零时偏差应为零: %+v", report.PriceConsistency)
	}
}

func TestCustomThreshold(t *testing.T) {
	f := StaticFetcher{Observations: map[string]Observation{
		"sonic":    obs("1.00", true),
		"ethereum": obs("1.01", true),
	}}
	a := NewAggregator(f, 0.1, zerolog.Nop())
	report := a.Check(context.Background(), []string{"sonic", "ethereum"})
	if report.PriceConsistency.IsConsistent {
		t.Fatal("阈值 0.1% 时应不一致")
	}
	if NewAggregator(f, 0, zerolog.Nop()).Threshold().String() != "5" {
		t.Fatal("非正阈值应回退到默认值")
	}
}

func TestReportJSONConsistencyBlock(t *testing.T) {
	failing := StaticFetcher{Errors: map[string]error{}}
	for _, c := range healthChains {
		failing.Errors[c] = errors.New("connection refused")
	}
	raw, err := json.Marshal(newTestAggregator(failing).Check(context.Background(), healthChains))
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if string(body["price_consistency"]) != "{}" {
		t.Fatalf("全部失败时一致性应为空对象, got %s", body["price_consistency"])
	}
	if _, ok := body["overall_status"]; !ok {
		t.Fatalf("缺少 overall_status: %s", raw)
	}

	ok := StaticFetcher{Observations: map[string]Observation{"sonic": obs("1.00", true), "ethereum": obs("1.01", true)}}
	raw, err = json.Marshal(newTestAggregator(ok).Check(context.Background(), []string{"sonic", "ethereum"}))
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	if !strings.Contains(string(raw), `"is_consistent":true`) {
		t.Fatalf("应包含一致性结果: %s", raw)
	}
}
