package utils

import (
	"context"
	"time"
)

// RetryPolicy 有界重试策略：最多 MaxRetries 次重试（不含首次尝试），
// 间隔随尝试次数线性增长。抓取与翻译共用同一套策略，避免各处手写循环。
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Retryable 判断错误是否值得重试。为 nil 时所有错误均重试。
	Retryable func(err error) bool

	// DelayFor 按错误与尝试序号计算等待时间（如限流需要等更久）。
	// 为 nil 时使用 BaseDelay * (attempt + 1) 的线性退避。
	DelayFor func(err error, attempt int) time.Duration

	// Sleep 便于测试注入，缺省为 time.Sleep
	Sleep func(d time.Duration)
}

// Retry 执行 fn，失败时按策略重试。ctx 取消后立即停止并返回最后一次错误。
func (p RetryPolicy) Retry(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		delay := p.BaseDelay * time.Duration(attempt+1)
		if p.DelayFor != nil {
			delay = p.DelayFor(lastErr, attempt)
		}
		sleep(delay)
	}
	return lastErr
}
