package vrf_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/contract"
	"dragon-mcp/internal/contract/contracttest"
	"dragon-mcp/internal/vrf"
)

func newService(t *testing.T, key string) *vrf.Service {
	t.Helper()
	client, err := contracttest.NewClient(contracttest.Config(), nil, key)
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	return vrf.NewService(client, zerolog.Nop())
}

func TestRequestOnArbitrum(t *testing.T) {
	req, err := newService(t, contracttest.TestKey).Request(context.Background(), "arbitrum", 3)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	if !req.Success || !req.Simulation || req.NumWords != 3 || req.EstimatedCost != "0.002 ETH (~$5)" {
		t.Fatalf("请求描述不正确: %+v", req)
	}
	if _, err := uuid.Parse(req.RequestID); err != nil {
		t.Fatalf("请求 ID 应为 UUID: %v", err)
	}
}

func TestRequestRejectsOtherChains(t *testing.T) {
	_, err := newService(t, contracttest.TestKey).Request(context.Background(), "sonic", 1)
	var unsupported *vrf.UnsupportedChainError
	if !errors.As(err, &unsupported) || unsupported.Chain != "sonic" {
		t.Fatalf("非 Arbitrum 链应被拒绝, got %v", err)
	}
}

func TestRequestWordBounds(t *testing.T) {
	svc := newService(t, contracttest.TestKey)
	for _, n := range []int{0, -1, 501} {
		if _, err := svc.Request(context.Background(), "arbitrum", n); err == nil {
			t.Fatalf("num_words=%d 应被拒绝", n)
		}
	}
	if _, err := svc.Request(context.Background(), "arbitrum", 500); err != nil {
		t.Fatalf("num_words=500 应被接受: %v", err)
	}
}

func TestRequestRequiresSigner(t *testing.T) {
	_, err := newService(t, "").Request(context.Background(), "arbitrum", 1)
	if !errors.Is(err, contract.ErrNoSigner) {
		t.Fatalf("应返回 ErrNoSigner, got %v", err)
	}
}
