package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}

	if cfg.PrimaryChain != "sonic" {
		t.Fatalf("默认主链应为 sonic, 实际 %s", cfg.PrimaryChain)
	}
	if cfg.Oracle.DeviationThresholdPct != 5.0 {
		t.Fatalf("默认偏差阈值应为 5, 实际 %v", cfg.Oracle.DeviationThresholdPct)
	}
	if len(cfg.Oracle.HealthChains) != 4 {
		t.Fatalf("默认巡检 4 条链, 实际 %v", cfg.Oracle.HealthChains)
	}
	if cfg.Chains["sonic"].RPCURL != "https://rpc.soniclabs.com" {
		t.Fatalf("sonic rpc 默认值错误: %q", cfg.Chains["sonic"].RPCURL)
	}
	if cfg.Chains["base"].EID != 30184 {
		t.Fatalf("base EID 错误: %d", cfg.Chains["base"].EID)
	}
	if cfg.Signer.ReceiptTimeout != 120*time.Second {
		t.Fatalf("receipt timeout 默认 120s, 实际 %s", cfg.Signer.ReceiptTimeout)
	}
	if cfg.HasSigner() {
		t.Fatal("未配置私钥时不应有签名者")
	}
	if cfg.ListenAddr() != "0.0.0.0:8000" {
		t.Fatalf("监听地址错误: %s", cfg.ListenAddr())
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("RPC_URL_ARBITRUM", "https://arb.example")
	t.Setenv("ORACLE_ARBITRUM", "0x00000000000000000000000000000000000000aa")
	t.Setenv("PRIVATE_KEY", "deadbeef")
	t.Setenv("ADMIN_API_KEY", "admin-secret")
	t.Setenv("PORT", "9100")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	arb := cfg.Chains["arbitrum"]
	if arb.RPCURL != "https://arb.example" {
		t.Fatalf("RPC_URL_ARBITRUM 未生效: %q", arb.RPCURL)
	}
	if arb.Contracts.Oracle != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("ORACLE_ARBITRUM 未生效: %q", arb.Contracts.Oracle)
	}
	if !cfg.HasSigner() {
		t.Fatal("PRIVATE_KEY 应启用签名")
	}
	if cfg.HTTP.APIKeys.Admin != "admin-secret" {
		t.Fatalf("ADMIN_API_KEY 未生效")
	}
	if cfg.ListenAddr() != "0.0.0.0:9100" {
		t.Fatalf("PORT 未生效: %s", cfg.ListenAddr())
	}
}

func TestValidateRejectsUnknownHealthChain(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	cfg.Oracle.HealthChains = append(cfg.Oracle.HealthChains, "solana")
	if err := cfg.Validate(); err == nil {
		t.Fatal("未知链应校验失败")
	}
}
