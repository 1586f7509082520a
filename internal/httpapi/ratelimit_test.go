package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"dragon-mcp/internal/config"
	"dragon-mcp/internal/tools"
)

func TestMemoryCounterWindow(t *testing.T) {
	c := NewMemoryCounter()
	now := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, tools.RoleTeam, 3)
		if err != nil || !ok {
			t.Fatalf("第 %d 次应放行: %v", i+1, err)
		}
	}
	if ok, _ := c.Allow(ctx, tools.RoleTeam, 3); ok {
		t.Fatal("超出配额应拒绝")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := c.Allow(ctx, tools.RoleTeam, 3); !ok {
		t.Fatal("新窗口应重新计数")
	}
}

func TestWindowKey(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := windowKey("p:", tools.RoleAdmin, ts); got != "p:admin:2026030405" {
		t.Fatalf("窗口键不正确: %s", got)
	}
}

func TestNewRedisCounterBadURL(t *testing.T) {
	if _, err := NewRedisCounter("not-a-url", "x"); err == nil {
		t.Fatal("非法 redis 地址应报错")
	}
}

func TestAuthenticateHighestRoleWins(t *testing.T) {
	a := NewAuthenticator(config.APIKeyConfig{Development: "shared", Team: " ", Admin: "shared"})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer shared")
	role, err := a.Authenticate(req)
	if err != nil || role != tools.RoleAdmin {
		t.Fatalf("应取最高角色, got %v %v", role, err)
	}

	req.Header.Set("Authorization", "Basic shared")
	if _, err := a.Authenticate(req); err != ErrMissingToken {
		t.Fatalf("非 Bearer 应返回 ErrMissingToken, got %v", err)
	}
}
