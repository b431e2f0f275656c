package fetch

import (
	"errors"
	"fmt"
)

// 抓取错误分类。调用方用 errors.Is 判断种类，决定重试与统计归档。
var (
	// ErrNotFound 源站确认资源不存在，永久失败，不重试
	ErrNotFound = errors.New("资源不存在")
	// ErrBlocked 被反爬拦截（403/429/验证页），有界重试后永久失败
	ErrBlocked = errors.New("触发反爬拦截")
	// ErrChallenge 被重定向到验证/挑战页面。未配置会话 Cookie 时不可恢复
	ErrChallenge = errors.New("触发反爬验证")
	// ErrTimeout 单次请求超时，可重试
	ErrTimeout = errors.New("请求超时")
	// ErrNetwork 网络层错误，可重试
	ErrNetwork = errors.New("网络错误")
	// ErrParse 页面抓取成功但缺少预期结构，本轮不重试
	ErrParse = errors.New("页面解析失败")
)

// Kind 错误种类
type Kind int

const (
	KindNotFound Kind = iota
	KindBlocked
	KindRateLimited // 429，重试前需要等更久
	KindChallenge
	KindTimeout
	KindNetwork
	KindParse
)

// Error 携带请求上下文的抓取错误
type Error struct {
	Kind   Kind
	Status int
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("抓取失败 (状态码 %d): %s", e.Status, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("抓取失败: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("抓取失败: %s", e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 把种类映射到哨兵错误。限流与验证跳转同时也算被拦截（ErrBlocked）。
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindBlocked:
		return target == ErrBlocked
	case KindRateLimited:
		return target == ErrBlocked
	case KindChallenge:
		return target == ErrChallenge || target == ErrBlocked
	case KindTimeout:
		return target == ErrTimeout
	case KindNetwork:
		return target == ErrNetwork
	case KindParse:
		return target == ErrParse
	}
	return false
}

// IsRateLimited 是否为 429 限流错误
func IsRateLimited(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindRateLimited
}

// IsRetryable 超时、网络错误与一般拦截可重试；资源不存在与解析失败不重试。
// 验证跳转只有在配置了会话 Cookie 时才值得重试，由 Client 自行判断。
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) ||
		(errors.Is(err, ErrBlocked) && !errors.Is(err, ErrChallenge))
}
