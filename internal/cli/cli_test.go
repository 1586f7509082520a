package cli

import (
	"testing"
	"time"
)

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	got, err := parseTimeFlag("from", "", now)
	if err != nil || got != nil {
		t.Fatalf("空值应返回 nil: %v %v", got, err)
	}

	got, err = parseTimeFlag("from", "2026-01-01T00:00:00Z", now)
	if err != nil || !got.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("RFC3339 解析不正确: %v %v", got, err)
	}

	got, err = parseTimeFlag("from", "24h", now)
	if err != nil || !got.Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("相对时间解析不正确: %v %v", got, err)
	}

	for _, bad := range []string{"yesterday", "-5m", "0s"} {
		if _, err := parseTimeFlag("from", bad, now); err == nil {
			t.Fatalf("%q 应报错", bad)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"mcp", "serve", "monitor", "health", "call", "show", "export", "simulate-alert", "migrate", "version"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Fatalf("缺少命令 %s", name)
		}
	}
}
