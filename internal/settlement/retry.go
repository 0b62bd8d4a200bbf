package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"grant-settlement-sol/internal/pkg/logger"
)

// linearBackOff 第 i 次失败后等待 base*i
type linearBackOff struct {
	base    time.Duration
	attempt int64
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// WithRetry 执行 op，仅对 IsRetryable 的错误重试；第 i 次失败后等待 baseDelay*i。
// 次数用尽后返回最后一次的错误（可用 errors.Is 判断）。
func WithRetry[T any](
	ctx context.Context,
	op func(ctx context.Context) (T, error),
	maxAttempts int,
	baseDelay time.Duration,
) (T, error) {
	return withRetry(ctx, op, maxAttempts, baseDelay, nil)
}

// timer 为空时使用 backoff 默认计时器
func withRetry[T any](
	ctx context.Context,
	op func(ctx context.Context) (T, error),
	maxAttempts int,
	baseDelay time.Duration,
	timer backoff.Timer,
) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		zero     T
		res      T
		lastErr  error
		attempts int
	)
	b := backoff.WithMaxRetries(backoff.WithContext(&linearBackOff{base: baseDelay}, ctx), uint64(maxAttempts-1))
	err := backoff.RetryNotifyWithTimer(func() error {
		attempts++
		r, err := op(ctx)
		if err != nil {
			lastErr = err
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}, b, func(err error, next time.Duration) {
		logger.Warnf("[Retry] attempt %d/%d failed, retry in %v: %v", attempts, maxAttempts, next, err)
	}, timer)

	switch {
	case err == nil:
		return res, nil
	case !IsRetryable(lastErr):
		return zero, lastErr
	case ctx.Err() != nil:
		return zero, fmt.Errorf("retry aborted after %d attempts (%v): %w", attempts, ctx.Err(), lastErr)
	}
	return zero, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
