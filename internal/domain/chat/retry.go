package chat

import (
	"context"
	"time"

	applog "karanbot/internal/platform/log"
)

// RetryPolicy 指数退避重试策略
type RetryPolicy struct {
	// MaxAttempts 最大尝试次数（含首次），默认 3
	MaxAttempts int
	// BaseDelay 首次重试等待，默认 1s
	BaseDelay time.Duration
	// MaxDelay 单次等待上限，默认 8s
	MaxDelay time.Duration
}

// DefaultRetryPolicy 默认策略：3 次尝试，1s 起步，上限 8s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// Do 执行 fn，失败则按 2^n 指数退避重试；ctx 取消立即终止
func (p RetryPolicy) Do(ctx context.Context, label string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		delay := base << (attempt - 1)
		if delay > maxDelay {
			delay = maxDelay
		}
		applog.Warn("[Retry] 🔄 Attempt failed, backing off",
			"label", label,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	applog.Error("[Retry] ❌ All attempts exhausted", "label", label, "attempts", attempts, "error", lastErr)
	return lastErr
}
