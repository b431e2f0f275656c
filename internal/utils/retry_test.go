package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryEventualSuccess(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Sleep: func(time.Duration) {}}

	err := p.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("暂时失败")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("第三次应成功: %v", err)
	}
	if attempts != 3 {
		t.Errorf("尝试次数 = %d，期望 3", attempts)
	}
}

func TestRetryBound(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, Sleep: func(time.Duration) {}}

	failure := errors.New("一直失败")
	err := p.Retry(context.Background(), func() error {
		attempts++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("应返回最后一次错误: %v", err)
	}
	if attempts != 3 {
		t.Errorf("尝试次数 = %d，期望首次 + 2 次重试 = 3", attempts)
	}
}

func TestRetryNonRetryable(t *testing.T) {
	permanent := errors.New("永久失败")
	attempts := 0
	p := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Retryable:  func(err error) bool { return !errors.Is(err, permanent) },
		Sleep:      func(time.Duration) {},
	}

	err := p.Retry(context.Background(), func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("应返回原错误: %v", err)
	}
	if attempts != 1 {
		t.Errorf("不可重试错误不应再尝试，尝试次数 = %d", attempts)
	}
}

func TestRetryLinearBackoff(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Sleep:      func(d time.Duration) { delays = append(delays, d) },
	}

	_ = p.Retry(context.Background(), func() error { return errors.New("失败") })

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("等待次数 = %d，期望 %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("第 %d 次等待 = %v，期望线性退避 %v", i+1, delays[i], want[i])
		}
	}
}

func TestRetryDelayFor(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  time.Second,
		DelayFor:   func(err error, attempt int) time.Duration { return 5 * time.Second },
		Sleep:      func(d time.Duration) { delays = append(delays, d) },
	}

	_ = p.Retry(context.Background(), func() error { return errors.New("失败") })

	if len(delays) != 1 || delays[0] != 5*time.Second {
		t.Errorf("delays = %v，DelayFor 应覆盖线性退避", delays)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	p := RetryPolicy{MaxRetries: 3, Sleep: func(time.Duration) {}}
	err := p.Retry(ctx, func() error {
		attempts++
		return errors.New("失败")
	})
	if err == nil {
		t.Fatal("已取消的上下文应立即返回错误")
	}
	if attempts != 0 {
		t.Errorf("取消后不应再调用 fn，调用次数 = %d", attempts)
	}
}
