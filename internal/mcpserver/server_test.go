package mcpserver

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/contract/contracttest"
	"dragon-mcp/internal/crosschain"
	"dragon-mcp/internal/lottery"
	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/tools"
	"dragon-mcp/internal/vrf"
)

func newServer(t *testing.T, backends map[string]*contracttest.Backend) *Server {
	t.Helper()
	cfg := contracttest.Config()
	client, err := contracttest.NewClient(cfg, backends, "")
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	logger := zerolog.Nop()
	ts := tools.New(tools.Services{
		Registry:   client.Registry(),
		Oracle:     oracle.NewService(client, oracle.Options{HealthChains: cfg.Oracle.HealthChains}, logger),
		Lottery:    lottery.NewService(client, "", logger),
		CrossChain: crosschain.NewService(client, logger),
		VRF:        vrf.NewService(client, logger),
	}, logger)
	return New(ts, logger)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("结果应只有一段内容, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("结果应为文本, got %T", res.Content[0])
	}
	return text.Text
}

func TestToolsRegistered(t *testing.T) {
	s := newServer(t, nil)
	resp := s.MCP().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("编码响应失败: %v", err)
	}
	var body struct {
		Result struct {
			Tools []struct {
				Name        string                 `json:"name"`
				InputSchema map[string]interface{} `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(body.Result.Tools) != len(tools.Names()) {
		t.Fatalf("应注册全部工具, got %s", raw)
	}
	seen := map[string]bool{}
	for _, tool := range body.Result.Tools {
		seen[tool.Name] = true
		if tool.InputSchema["type"] != "object" {
			t.Fatalf("%s 的参数模式不正确: %v", tool.Name, tool.InputSchema)
		}
	}
	for _, n := range tools.Names() {
		if !seen[string(n)] {
			t.Fatalf("缺少工具 %s", n)
		}
	}
}

func TestCallToolSuccess(t *testing.T) {
	sonic := contracttest.NewBackend()
	sonic.Return("getAggregatedPrice", big.NewInt(1_250_000_000_000_000_000), true, big.NewInt(1700000000))
	s := newServer(t, map[string]*contracttest.Backend{"sonic": sonic})

	res := s.callTool(context.Background(), tools.GetDragonPrice, map[string]interface{}{"chain": "sonic"})
	if res.IsError {
		t.Fatalf("调用不应失败: %s", resultText(t, res))
	}
	var body struct {
		Chain     string `json:"chain"`
		PriceData struct {
			PriceUSD float64 `json:"price_usd"`
		} `json:"price_data"`
		HealthStatus string `json:"health_status"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("结果应为 JSON: %v", err)
	}
	if body.Chain != "sonic" || body.PriceData.PriceUSD != 1.25 || body.HealthStatus != "healthy" {
		t.Fatalf("结果不正确: %+v", body)
	}
}

func TestCallToolErrorIsResult(t *testing.T) {
	s := newServer(t, nil)
	res := s.callTool(context.Background(), tools.SimulateLottery, map[string]interface{}{})
	if !res.IsError {
		t.Fatal("参数缺失应返回错误结果")
	}
	if !strings.Contains(resultText(t, res), "usd_amount") {
		t.Fatalf("错误应指出缺失字段: %s", resultText(t, res))
	}
}

func TestStatsResource(t *testing.T) {
	s := newServer(t, nil)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "dragon://stats/arbitrum"

	contents, err := s.handleStats(context.Background(), req)
	if err != nil {
		t.Fatalf("读取资源失败: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("资源应为文本, got %T", contents[0])
	}
	var stats struct {
		Chain          string  `json:"chain"`
		LayerZeroEID   *uint32 `json:"layerzero_eid"`
		SupportsOracle bool    `json:"supports_oracle"`
	}
	if err := json.Unmarshal([]byte(text.Text), &stats); err != nil {
		t.Fatalf("资源应为 JSON: %v", err)
	}
	if stats.Chain != "arbitrum" || stats.LayerZeroEID == nil || *stats.LayerZeroEID != 30110 || !stats.SupportsOracle {
		t.Fatalf("资源内容不正确: %+v", stats)
	}
	if !strings.Contains(text.Text, "\n  ") {
		t.Fatal("资源应为格式化 JSON")
	}
}

func TestStatsResourceUnknownChain(t *testing.T) {
	s := newServer(t, nil)
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "dragon://stats/polygon"

	contents, err := s.handleStats(context.Background(), req)
	if err != nil {
		t.Fatalf("未知链也应返回静态信息: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, `"contract_address": null`) || !strings.Contains(text, `"supports_oracle": false`) {
		t.Fatalf("未知链应返回空字段: %s", text)
	}
}

func TestPromptsDefined(t *testing.T) {
	names := map[string]bool{}
	for _, p := range prompts {
		if strings.TrimSpace(p.text) == "" {
			t.Fatalf("提示 %s 不应为空", p.name)
		}
		names[p.name] = true
	}
	if !names["dragon_monitoring_prompt"] || !names["dragon_testing_prompt"] {
		t.Fatalf("缺少提示: %v", names)
	}
}
