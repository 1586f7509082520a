package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/contract/contracttest"
	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/storage"
)

func newTestApp(backends map[string]*contracttest.Backend) *App {
	cfg := contracttest.Config()
	cfg.Scheduler.Interval = 5 * time.Minute
	a := NewApp(cfg, zerolog.Nop())
	a.dial = contracttest.Dialer(backends)
	return a
}

func priced(v int64) *contracttest.Backend {
	b := contracttest.NewBackend()
	b.Return("getAggregatedPrice", new(big.Int).Mul(big.NewInt(v), big.NewInt(1e16)), true, big.NewInt(1700000000))
	return b
}

func TestHealthTable(t *testing.T) {
	a := newTestApp(map[string]*contracttest.Backend{
		"sonic":    priced(100),
		"ethereum": priced(100),
		"arbitrum": priced(110),
	})

	var out bytes.Buffer
	report, err := a.Health(context.Background(), &out, false)
	if err != nil {
		t.Fatalf("健康检查失败: %v", err)
	}
	if report.OverallStatus != oracle.StatusDegraded {
		t.Fatalf("3/4 健康应为 degraded, got %s", report.OverallStatus)
	}
	text := out.String()
	for _, want := range []string{"Chains: sonic, ethereum, arbitrum, base (primary sonic)", "Overall: degraded (3/4 healthy)", "arbitrum", "1.100000", "Max deviation: 6.45%", "ALERT: base:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("输出缺少 %q:\n%s", want, text)
		}
	}
}

func TestHealthJSON(t *testing.T) {
	a := newTestApp(nil)
	var out bytes.Buffer
	if _, err := a.Health(context.Background(), &out, true); err != nil {
		t.Fatalf("健康检查失败: %v", err)
	}
	var body struct {
		OverallStatus string   `json:"overall_status"`
		Alerts        []string `json:"alerts"`
	}
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("输出应为 JSON: %v", err)
	}
	if body.OverallStatus != "critical" || len(body.Alerts) != 4 {
		t.Fatalf("全部失败应为 critical 且 4 条告警: %+v", body)
	}
}

func TestCallTool(t *testing.T) {
	a := newTestApp(nil)
	var out bytes.Buffer
	err := a.Call(context.Background(), &out, "estimate_layerzero_fee", json.RawMessage(`{"source_chain":"ethereum","dest_chain":"arbitrum"}`))
	if err != nil {
		t.Fatalf("调用失败: %v", err)
	}
	if !strings.Contains(out.String(), `"dest_eid": 30110`) {
		t.Fatalf("输出不正确: %s", out.String())
	}

	if err := a.Call(context.Background(), &out, "nope", nil); err == nil {
		t.Fatal("未知工具应报错")
	}
}

func TestSimulateAlert(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		text = body["text"]
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	a := newTestApp(nil)
	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Telegram.Enabled = true
	a.Config.Alerting.Telegram.APIBase = srv.URL
	a.Config.Alerting.Telegram.BotToken = "token"
	a.Config.Alerting.Telegram.ChatID = "chat"

	report, err := a.SimulateAlert(context.Background(), map[string]decimal.Decimal{
		"sonic":    decimal.RequireFromString("1.00"),
		"ethereum": decimal.RequireFromString("1.00"),
		"arbitrum": decimal.RequireFromString("1.10"),
	})
	if err != nil {
		t.Fatalf("模拟告警失败: %v", err)
	}
	if report.OverallStatus != oracle.StatusDegraded {
		t.Fatalf("状态不正确: %s", report.OverallStatus)
	}
	if !strings.Contains(text, "simulated outage on base") || !strings.Contains(text, "(simulated)") {
		t.Fatalf("告警正文不正确: %s", text)
	}
}

func TestSimulateAlertRequiresChannel(t *testing.T) {
	a := newTestApp(nil)
	if _, err := a.SimulateAlert(context.Background(), nil); err == nil {
		t.Fatal("未启用告警应报错")
	}
	a.Config.Alerting.Enabled = true
	if _, err := a.SimulateAlert(context.Background(), nil); err == nil {
		t.Fatal("无告警通道应报错")
	}
}

func TestStoreCommandsNeedDatabase(t *testing.T) {
	a := newTestApp(nil)
	if err := a.Show(context.Background(), &bytes.Buffer{}, ShowOptions{Limit: 5}); err == nil {
		t.Fatal("未配置数据库时 show 应报错")
	}
	if err := a.Export(context.Background(), ExportOptions{CSVPath: "x.csv"}); err == nil {
		t.Fatal("未配置数据库时 export 应报错")
	}
	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("未指定输出时 export 应报错")
	}
	if _, err := a.Migrate(context.Background()); err == nil {
		t.Fatal("未配置数据库时 migrate 应报错")
	}
}

func snapshots(n int) []storage.HealthSnapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]storage.HealthSnapshot, n)
	for i := range out {
		avg := decimal.NewFromFloat(1 + float64(i)/100)
		dev := decimal.NewFromFloat(float64(i) / 10)
		ok := i%2 == 0
		out[i] = storage.HealthSnapshot{
			Bucket:          start.Add(time.Duration(i) * 5 * time.Minute),
			OverallStatus:   "healthy",
			HealthyChains:   4,
			TotalChains:     4,
			AveragePrice:    &avg,
			MaxDeviationPct: &dev,
			IsConsistent:    &ok,
		}
	}
	return out
}

func TestDownsample(t *testing.T) {
	in := snapshots(10)
	out := downsample(in, 4)
	if len(out) != 4 || !out[0].Bucket.Equal(in[0].Bucket) || !out[3].Bucket.Equal(in[9].Bucket) {
		t.Fatalf("降采样应保留首尾: %d", len(out))
	}
	if len(downsample(in, 20)) != 10 || len(downsample(in, 1)) != 1 {
		t.Fatal("降采样边界不正确")
	}
}

func TestWriteSnapshotsCSV(t *testing.T) {
	in := snapshots(2)
	in[1].AveragePrice = nil
	in[1].Alerts = []string{"a", "b"}

	var buf bytes.Buffer
	if err := writeSnapshotsCSV(&buf, in); err != nil {
		t.Fatalf("写 CSV 失败: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("解析 CSV 失败: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "bucket_ts" {
		t.Fatalf("CSV 行数不正确: %v", rows)
	}
	if rows[1][4] != "1" || rows[2][4] != "" || rows[2][7] != "a; b" {
		t.Fatalf("CSV 内容不正确: %v", rows)
	}
}

func TestWriteSnapshotsPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSnapshotsPNG(&buf, snapshots(5)); err != nil {
		t.Fatalf("渲染 PNG 失败: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatal("输出应为 PNG")
	}
	if err := writeSnapshotsPNG(&buf, snapshots(1)); err == nil {
		t.Fatal("数据点不足应报错")
	}
}

func TestShowRow(t *testing.T) {
	var buf bytes.Buffer
	snap := snapshots(1)[0]
	snap.Alerts = []string{"line\nbreak"}
	writeSnapshotRow(&buf, snap)
	if !strings.Contains(buf.String(), "4/4") || !strings.Contains(buf.String(), "line break") {
		t.Fatalf("行内容不正确: %q", buf.String())
	}
}

func TestToolsetLogsRegistryAndSigner(t *testing.T) {
	var logs bytes.Buffer
	cfg := contracttest.Config()
	cfg.Signer.PrivateKey = contracttest.TestKey
	a := NewApp(cfg, zerolog.New(&logs))
	a.dial = contracttest.Dialer(nil)

	_, client, err := a.newToolset()
	if err != nil {
		t.Fatalf("构建工具集失败: %v", err)
	}
	defer client.Close()

	out := logs.String()
	if !strings.Contains(out, `"primary":"sonic"`) || !strings.Contains(out, `"chain registry loaded"`) {
		t.Fatalf("应记录链注册信息: %s", out)
	}
	if !strings.Contains(out, `"sender":"`+client.Sender().Hex()+`"`) {
		t.Fatalf("应记录签名地址: %s", out)
	}

	logs.Reset()
	b := NewApp(contracttest.Config(), zerolog.New(&logs))
	b.dial = contracttest.Dialer(nil)
	_, other, err := b.newToolset()
	if err != nil {
		t.Fatalf("构建工具集失败: %v", err)
	}
	defer other.Close()
	if !strings.Contains(logs.String(), "state-changing tools are disabled") {
		t.Fatalf("无私钥时应告警: %s", logs.String())
	}
}
