package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "debug"})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("期望 debug 级别, 实际 %s", logger.GetLevel())
	}

	logger = NewLogger(Config{Level: "not-a-level"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("非法级别应回退到 info, 实际 %s", logger.GetLevel())
	}
}

func TestForStdioRedirectsToStderr(t *testing.T) {
	cfg := ForStdio(Config{Output: "stdout", Format: "json"})
	if cfg.Output != "stderr" {
		t.Fatalf("stdio 模式必须写 stderr, 实际 %q", cfg.Output)
	}
	if outputStream(cfg.Output) != os.Stderr {
		t.Fatal("outputStream 应返回 os.Stderr")
	}
	if outputStream("") != os.Stdout {
		t.Fatal("默认输出应为 os.Stdout")
	}
}
