package xcall

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcall/pkg/resilience/xretry"
)

func newSyncExecutor(t *testing.T, fn func(ctx context.Context, apiKey string) (string, error), session Session, opts ...Option[string]) *Executor[string] {
	t.Helper()
	e, err := New(Call[string]{Sync: fn}, session, opts...)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	t.Run("MissingCall", func(t *testing.T) {
		_, err := New(Call[string]{}, &fakeSession{})

		assert.ErrorIs(t, err, ErrMissingCall)
	})

	t.Run("NilSession", func(t *testing.T) {
		_, err := New(Call[string]{
			Sync: func(context.Context, string) (string, error) { return "", nil },
		}, nil)

		assert.ErrorIs(t, err, ErrNilSession)
	})

	t.Run("CallIDAssigned", func(t *testing.T) {
		e := newSyncExecutor(t, func(context.Context, string) (string, error) { return "", nil }, &fakeSession{})

		assert.NotEmpty(t, e.CallID())
	})
}

func TestExecutor_Perform(t *testing.T) {
	t.Run("SuccessVerbatim", func(t *testing.T) {
		e := newSyncExecutor(t, func(_ context.Context, apiKey string) (string, error) {
			return "result:" + apiKey, nil
		}, &fakeSession{})

		result, err := e.Perform(context.Background(), "key-1")

		require.NoError(t, err)
		assert.Equal(t, "result:key-1", result)
	})

	t.Run("NilContext", func(t *testing.T) {
		e := newSyncExecutor(t, func(context.Context, string) (string, error) { return "", nil }, &fakeSession{})

		//nolint:staticcheck // SA1012: 刻意传 nil 验证防御行为
		_, err := e.Perform(nil, "key")

		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("AsyncOnlyCallRejected", func(t *testing.T) {
		e, err := New(Call[string]{
			Async: func(context.Context, string, TransportListener[string]) {},
		}, &fakeSession{})
		require.NoError(t, err)

		_, err = e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrMissingSyncCall)
	})

	t.Run("RetryableExhaustsBudgetWithNPlusOneAttempts", func(t *testing.T) {
		const budget = 3
		var attempts atomic.Int32

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", &fakeStatusError{code: 503}
		}, &fakeSession{}, WithPolicy[string](xretry.NewStatusPolicy(
			xretry.WithMaxRetries(budget),
			xretry.WithBackoff(xretry.NewNoBackoff()),
		)))
		instantDelays(e)

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNetwork)
		assert.Equal(t, int32(budget+1), attempts.Load())
	})

	t.Run("RetrySucceedsMidway", func(t *testing.T) {
		var attempts atomic.Int32

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			if attempts.Add(1) < 3 {
				return "", &fakeStatusError{code: 503}
			}
			return "ok", nil
		}, &fakeSession{})
		instantDelays(e)

		result, err := e.Perform(context.Background(), "key")

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("BackoffDelayAppliedBetweenAttempts", func(t *testing.T) {
		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			return "", &fakeStatusError{code: 503}
		}, &fakeSession{}, WithPolicy[string](xretry.NewStatusPolicy(
			xretry.WithMaxRetries(1),
			xretry.WithBackoff(xretry.NewFixedBackoff(100*time.Millisecond)),
		)))
		delays := instantDelays(e)

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNetwork)
		require.Len(t, *delays, 1)
		assert.Equal(t, 100*time.Millisecond, (*delays)[0])
	})

	t.Run("SleepInterruptedByContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			cancel()
			return "", &fakeStatusError{code: 503}
		}, &fakeSession{})

		_, err := e.Perform(ctx, "key")

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Unauthorized401TriggersReauthWithoutReplay", func(t *testing.T) {
		session := &fakeSession{}
		var attempts atomic.Int32

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", &fakeStatusError{code: 401}
		}, session)

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrSessionInvalid)
		// 同步路径不重放：恰好一次尝试
		assert.Equal(t, int32(1), attempts.Load())
		reRegisters, _, _ := session.stats()
		assert.Equal(t, 1, reRegisters)
		// 原始传输错误保留在错误链中
		var cause *fakeStatusError
		assert.ErrorAs(t, err, &cause)
	})

	t.Run("Forbidden403MarksSuspendedOnce", func(t *testing.T) {
		session := &fakeSession{}
		var attempts atomic.Int32

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", &fakeStatusError{code: 403}
		}, session)

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrSuspended)
		assert.NotErrorIs(t, err, ErrNetwork)
		assert.Equal(t, int32(1), attempts.Load())
		_, suspendedSets, suspended := session.stats()
		assert.Equal(t, 1, suspendedSets)
		assert.True(t, suspended)
	})

	t.Run("UnclassifiedStatusIsGenericFailure", func(t *testing.T) {
		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			return "", &fakeStatusError{code: 418}
		}, &fakeSession{})

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNetwork)
		assert.NotErrorIs(t, err, ErrNullResponse)
		var ne *NetworkError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, 418, ne.StatusCode)
	})

	t.Run("NullResponseIsTerminalWithoutRetry", func(t *testing.T) {
		var attempts atomic.Int32
		cause := errors.New("connection reset")

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", cause
		}, &fakeSession{})

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNullResponse)
		assert.ErrorIs(t, err, ErrNetwork)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("NoConnectionFailsFastWithoutAttempt", func(t *testing.T) {
		var (
			attempts atomic.Int32
			lost     atomic.Int32
		)

		e, err := New(Call[string]{
			Sync: func(context.Context, string) (string, error) {
				attempts.Add(1)
				return "", nil
			},
			OnConnectionLost: func() { lost.Add(1) },
		}, &fakeSession{}, WithConnectivity[string](&fakeConn{available: false}))
		require.NoError(t, err)

		start := time.Now()
		_, perr := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, perr, ErrNoConnection)
		assert.Equal(t, int32(0), attempts.Load())
		assert.Equal(t, int32(1), lost.Add(0))
		// 快速失败：没有任何退避延迟
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("BreakerOpenFailsFastWithoutRetry", func(t *testing.T) {
		cb := gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
			Name: "xcall-test",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
		})
		var attempts atomic.Int32

		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", &fakeStatusError{code: 418}
		}, &fakeSession{}, WithBreaker[string](cb))
		instantDelays(e)

		_, err := e.Perform(context.Background(), "key")
		require.ErrorIs(t, err, ErrNetwork)
		require.Equal(t, int32(1), attempts.Load())

		// 第一次失败已触发熔断：第二个执行器的调用被直接拒绝
		e2 := newSyncExecutor(t, func(context.Context, string) (string, error) {
			attempts.Add(1)
			return "", nil
		}, &fakeSession{}, WithBreaker[string](cb))

		_, err = e2.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNetwork)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("BadRequestBodyLoggedWithoutChangingOutcome", func(t *testing.T) {
		e := newSyncExecutor(t, func(context.Context, string) (string, error) {
			return "", &fakeStatusError{code: 400, body: []byte(`{"reason":"bad payload"}`)}
		}, &fakeSession{})

		_, err := e.Perform(context.Background(), "key")

		assert.ErrorIs(t, err, ErrNetwork)
		var ne *NetworkError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, 400, ne.StatusCode)
	})
}

func TestExecutor_RetryBudgetSharedAcrossLoop(t *testing.T) {
	// 预算单调耗尽：同一执行器上重复的 503 链路不会重新获得预算
	policy := xretry.NewStatusPolicy(
		xretry.WithMaxRetries(2),
		xretry.WithBackoff(xretry.NewNoBackoff()),
	)
	var attempts atomic.Int32

	e := newSyncExecutor(t, func(context.Context, string) (string, error) {
		attempts.Add(1)
		return "", &fakeStatusError{code: 503}
	}, &fakeSession{}, WithPolicy[string](policy))
	instantDelays(e)

	_, err := e.Perform(context.Background(), "key")
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, int32(3), attempts.Load())

	// 同一实例再次调用：预算已耗尽，只剩首次尝试
	_, err = e.Perform(context.Background(), "key")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, int32(4), attempts.Load())
}
