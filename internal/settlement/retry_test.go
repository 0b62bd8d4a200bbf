package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedTimer 记录等待时长并立即触发
type recordedTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func newRecordedTimer() *recordedTimer {
	return &recordedTimer{c: make(chan time.Time, 1)}
}

func (r *recordedTimer) Start(d time.Duration) {
	r.delays = append(r.delays, d)
	r.c <- time.Now()
}

func (r *recordedTimer) Stop() {}

func (r *recordedTimer) C() <-chan time.Time { return r.c }

// flaky 前 failures 次返回 err，之后成功
func flaky(failures int, err error) (func(ctx context.Context) (string, error), *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", err
		}
		return "sig", nil
	}, &calls
}

func TestWithRetry_RecoversFromTransientFailures(t *testing.T) {
	rec := newRecordedTimer()
	op, calls := flaky(2, &NetworkError{Op: "sendTransaction", Err: errors.New("timeout")})

	res, err := withRetry(context.Background(), op, 5, 100*time.Millisecond, rec)
	require.NoError(t, err)
	assert.Equal(t, "sig", res)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestWithRetry_DelaysAreNonDecreasing(t *testing.T) {
	rec := newRecordedTimer()
	op, _ := flaky(100, &NetworkError{Op: "getBlockHeight", Err: errors.New("503")})

	_, _ = withRetry(context.Background(), op, 6, time.Second, rec)
	require.Len(t, rec.delays, 5)
	for i := 1; i < len(rec.delays); i++ {
		assert.GreaterOrEqual(t, rec.delays[i], rec.delays[i-1])
		assert.Equal(t, time.Second*time.Duration(i+1), rec.delays[i])
	}
}

func TestWithRetry_ExhaustionSurfacesLastError(t *testing.T) {
	rec := newRecordedTimer()
	calls := 0
	op := func(ctx context.Context) (string, error) {
		calls++
		if calls == 3 {
			return "", &NetworkError{Op: "last", Err: errors.New("final")}
		}
		return "", ErrExpired
	}

	_, err := withRetry(context.Background(), op, 3, time.Millisecond, rec)
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "last", netErr.Op)
}

func TestWithRetry_DoesNotRetryTerminalErrors(t *testing.T) {
	for _, terminal := range []error{
		ErrInvalidAmount,
		ErrInsufficientBalance,
		&RejectedError{Reason: "custom program error: 0x4"},
		ErrVerificationFailed,
		&PendingConfirmationError{Signature: "sig", Err: context.DeadlineExceeded},
	} {
		rec := newRecordedTimer()
		op, calls := flaky(100, terminal)

		_, err := withRetry(context.Background(), op, 5, time.Millisecond, rec)
		assert.ErrorIs(t, err, terminal)
		assert.Equal(t, 1, *calls, "%v", terminal)
		assert.Empty(t, rec.delays)
	}
}

func TestWithRetry_RetriesExpired(t *testing.T) {
	rec := newRecordedTimer()
	op, calls := flaky(1, ErrExpired)

	_, err := withRetry(context.Background(), op, 2, time.Millisecond, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestWithRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, calls := flaky(100, &NetworkError{Op: "getLatestBlockhash", Err: errors.New("refused")})
	_, err := WithRetry(ctx, op, 5, time.Hour)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 1, *calls)
}

func TestWithRetry_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	op, calls := flaky(100, &NetworkError{Op: "sendTransaction", Err: errors.New("timeout")})
	start := time.Now()
	_, err := WithRetry(ctx, op, 5, time.Hour)
	assert.Less(t, time.Since(start), time.Minute)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "retry aborted after 1 attempts")
	assert.Equal(t, 1, *calls)
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{base: 50 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 150*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
}

func TestWithRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	op, calls := flaky(0, nil)
	res, err := WithRetry(context.Background(), op, 0, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "sig", res)
	assert.Equal(t, 1, *calls)
}
