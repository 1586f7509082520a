package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsZeroInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Fatal("零间隔应报错")
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: 5 * time.Minute, AlignToStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	now := time.Date(2026, 1, 1, 10, 7, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2026, 1, 1, 10, 10, 0, 0, time.UTC)) {
		t.Fatalf("下一个桶不正确: %s", got)
	}
	if got := s.BucketStart(now); !got.Equal(time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)) {
		t.Fatalf("桶起点不正确: %s", got)
	}

	onBoundary := time.Date(2026, 1, 1, 10, 10, 0, 0, time.UTC)
	if got := s.nextTick(onBoundary); !got.Equal(time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("边界时刻应跳到下一个桶: %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s, _ := New(Options{Interval: time.Minute}, zerolog.Nop())
	now := time.Date(2026, 1, 1, 10, 7, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("未对齐时应直接加间隔: %s", got)
	}
	if got := s.BucketStart(now); !got.Equal(now) {
		t.Fatalf("未对齐时桶起点即当前时间: %s", got)
	}
}

func TestRunImmediateThenCancel(t *testing.T) {
	s, _ := New(Options{Interval: time.Hour, AlignToStart: true, Immediate: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	err := s.Run(ctx, func(context.Context, time.Time) error {
		calls.Add(1)
		cancel()
		return errors.New("tick errors are logged only")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("取消后应返回 context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("应立即执行一次, got %d", calls.Load())
	}
}
