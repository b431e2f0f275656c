package service

import (
	"errors"
	"testing"
	"time"

	"github.com/user/cinesync/internal/fetch"
)

func TestComputeNextRunWithinWindow(t *testing.T) {
	s := NewScheduler(nil, 2, 6)
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.Local)

	for i := 0; i < 50; i++ {
		next := s.computeNextRun(now)
		if !next.After(now) {
			t.Fatalf("next = %v，应晚于当前时间 %v", next, now)
		}
		if next.Hour() < 2 || next.Hour() >= 6 {
			t.Fatalf("next = %v，应落在每日 [02:00, 06:00) 窗口内", next)
		}
		if next.Day() != now.Day() {
			t.Fatalf("next = %v，当前还在窗口前，应落在当天", next)
		}
	}
}

func TestComputeNextRunRollsToTomorrow(t *testing.T) {
	s := NewScheduler(nil, 2, 6)
	// 已过今日窗口，应落到明天
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.Local)

	for i := 0; i < 50; i++ {
		next := s.computeNextRun(now)
		if !next.After(now) {
			t.Fatalf("next = %v，应晚于当前时间 %v", next, now)
		}
		if next.Hour() < 2 || next.Hour() >= 6 {
			t.Fatalf("next = %v，应落在每日 [02:00, 06:00) 窗口内", next)
		}
		if next.Day() != now.AddDate(0, 0, 1).Day() {
			t.Fatalf("next = %v，窗口已过应落到明天", next)
		}
	}
}

func TestNextRunAfterNeverSameDay(t *testing.T) {
	s := NewScheduler(nil, 2, 6)
	// 一轮同步在窗口内触发并结束。重布防必须落到次日窗口，
	// 否则同一天会再跑第二轮
	prev := time.Date(2026, 3, 10, 2, 30, 0, 0, time.Local)

	for i := 0; i < 200; i++ {
		next := s.nextRunAfter(prev)
		if next.Year() == prev.Year() && next.YearDay() == prev.YearDay() {
			t.Fatalf("next = %v，跑完一轮后重布防不应落在当天", next)
		}
		want := prev.AddDate(0, 0, 1)
		if next.Year() != want.Year() || next.YearDay() != want.YearDay() {
			t.Fatalf("next = %v，应落在次日", next)
		}
		if next.Hour() < 2 || next.Hour() >= 6 {
			t.Fatalf("next = %v，应落在每日 [02:00, 06:00) 窗口内", next)
		}
	}
}

func TestSchedulerStatusInitial(t *testing.T) {
	s := NewScheduler(nil, 2, 6)
	state, nextRunAt := s.Status()
	if state != StateIdle {
		t.Errorf("初始状态 = %v，期望 idle", state)
	}
	if !nextRunAt.IsZero() {
		t.Errorf("未启动时 nextRunAt = %v，期望零值", nextRunAt)
	}
}

func TestSchedulerStopBeforeFire(t *testing.T) {
	// 窗口取在至少一小时之后，确保测试期间定时器不会触发
	start := (time.Now().Hour() + 2) % 24
	end := start + 1
	if end > 23 {
		start, end = 1, 2
	}

	s := NewScheduler(&SyncService{}, start, end)
	s.Start()
	time.Sleep(50 * time.Millisecond)

	state, nextRunAt := s.Status()
	if state != StateArmed {
		t.Errorf("启动后状态 = %v，期望 armed", state)
	}
	if nextRunAt.IsZero() {
		t.Error("armed 状态应带 nextRunAt")
	}

	s.Stop()
	done := make(chan struct{})
	go func() { s.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop 后调度循环未退出")
	}

	state, _ = s.Status()
	if state != StateIdle {
		t.Errorf("停止后状态 = %v，期望 idle", state)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		prefix string
	}{
		{&fetch.Error{Kind: fetch.KindNotFound, Status: 404}, "not_found"},
		{&fetch.Error{Kind: fetch.KindChallenge, Status: 302}, "challenge"},
		{&fetch.Error{Kind: fetch.KindRateLimited, Status: 429}, "blocked"},
		{&fetch.Error{Kind: fetch.KindTimeout}, "timeout"},
		{&fetch.Error{Kind: fetch.KindParse}, "parse_failure"},
		{&fetch.Error{Kind: fetch.KindNetwork}, "network_error"},
		{errors.New("写入补丁失败"), "写入补丁失败"},
	}
	for _, tt := range tests {
		got := classifyError(tt.err)
		if len(got) < len(tt.prefix) || got[:len(tt.prefix)] != tt.prefix {
			t.Errorf("classifyError(%v) = %q，期望以 %q 开头", tt.err, got, tt.prefix)
		}
	}
}

func TestRunStatsErrorBound(t *testing.T) {
	stats := &RunStats{}
	for i := 0; i < maxRunErrors+50; i++ {
		stats.addError("1292226", "闪灵", errors.New("fail"))
	}
	if stats.Failed != maxRunErrors+50 {
		t.Errorf("Failed = %d，计数不应截断", stats.Failed)
	}
	if len(stats.Errors) != maxRunErrors {
		t.Errorf("错误明细 = %d 条，应截断到 %d", len(stats.Errors), maxRunErrors)
	}
}

func TestTouchesEmbedding(t *testing.T) {
	if !touchesEmbedding(Patch{"summary": "新简介"}) {
		t.Error("简介变化应触发向量刷新")
	}
	if touchesEmbedding(Patch{"imdb_rating": 8.5, "votes_count": 1}) {
		t.Error("纯数值字段变化不应触发向量刷新")
	}
}
