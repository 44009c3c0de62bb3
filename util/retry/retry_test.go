package retry

import (
	"context"
	"testing"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	logger := ulogger.TestLogger{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	successFn := func() (string, error) {
		return "success", nil
	}

	staticCallCount := 0
	retryOnceFn := func() (string, error) {
		if staticCallCount == 0 {
			staticCallCount++
			return "", errors.NewProcessingError("error")
		}

		return "success", nil
	}

	alwaysFailFn := func() (string, error) {
		return "", errors.NewProcessingError("persistent error")
	}

	// succeeds on the first try
	result, err := Retry(ctx, logger, successFn,
		WithRetryCount(3),
		WithBackoffMultiplier(2),
		WithBackoffDurationType(100*time.Millisecond),
		WithMessage("Trying again"))
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	// exponential backoff with cap
	result, err = Retry(ctx, logger, retryOnceFn,
		WithExponentialBackoff(),
		WithBackoffDurationType(50*time.Millisecond),
		WithBackoffFactor(2.0),
		WithMaxBackoff(200*time.Millisecond),
		WithRetryCount(3))
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	// infinite retry succeeds after one failure
	staticCallCount = 0
	result, err = Retry(ctx, logger, retryOnceFn,
		WithInfiniteRetry(),
		WithExponentialBackoff(),
		WithBackoffDurationType(10*time.Millisecond),
		WithMaxBackoff(100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	// infinite retry ends with the context
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer timeoutCancel()

	_, err = Retry(timeoutCtx, logger, alwaysFailFn,
		WithInfiniteRetry(),
		WithExponentialBackoff(),
		WithBackoffDurationType(10*time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		calls++
		return 0, errors.NewBlockInvalidError("attempt %d", calls)
	}, WithRetryCount(3), WithBackoffDurationType(time.Millisecond))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
}

func TestRetry_Permanent(t *testing.T) {
	calls := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		calls++
		return 0, Permanent(errors.NewContextCanceledError("stop"))
	}, WithRetryCount(5), WithBackoffDurationType(time.Millisecond))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextCanceled))
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestCappedExponentialBackoff(t *testing.T) {
	backoff := CappedExponentialBackoff(100*time.Millisecond, 2.0, 1*time.Second)
	assert.Equal(t, 200*time.Millisecond, backoff)

	backoff = CappedExponentialBackoff(600*time.Millisecond, 2.0, 1*time.Second)
	assert.Equal(t, 1*time.Second, backoff)

	backoff = CappedExponentialBackoff(100*time.Millisecond, 1.5, 1*time.Second)
	assert.Equal(t, 150*time.Millisecond, backoff)
}

func TestBackoffAndSleep(t *testing.T) {
	t.Run("completes sleep successfully", func(t *testing.T) {
		start := time.Now()
		err := BackoffAndSleep(context.Background(), 1, 1, 10*time.Millisecond)

		require.NoError(t, err)
		// (1*1)+1 = 2 * 10ms
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancels on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- BackoffAndSleep(ctx, 2, 1, 100*time.Millisecond)
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.Equal(t, context.Canceled, err)
		case <-time.After(200 * time.Millisecond):
			t.Fatal("BackoffAndSleep did not cancel in time")
		}
	})

	t.Run("respects backoff calculation", func(t *testing.T) {
		originalSleepFunc := sleepFunc
		defer func() { sleepFunc = originalSleepFunc }()

		var recordedDuration time.Duration
		sleepFunc = func(_ context.Context, d time.Duration) error {
			recordedDuration = d
			return nil
		}

		tests := []struct {
			retries    int
			multiplier int
			duration   time.Duration
			expected   time.Duration
		}{
			{0, 1, time.Second, 1 * time.Second},
			{1, 2, time.Second, 3 * time.Second},
			{3, 3, time.Second, 10 * time.Second},
			{2, 5, time.Millisecond, 11 * time.Millisecond},
		}

		for _, tc := range tests {
			require.NoError(t, BackoffAndSleep(context.Background(), tc.retries, tc.multiplier, tc.duration))
			assert.Equal(t, tc.expected, recordedDuration)
			assert.Equal(t, tc.expected, LinearBackoff(tc.retries, tc.multiplier, tc.duration))
		}
	})
}

func TestRetryTimer(t *testing.T) {
	originalSleepFunc := sleepFunc
	defer func() { sleepFunc = originalSleepFunc }()

	var recordedSleeps []time.Duration

	sleepFunc = func(_ context.Context, duration time.Duration) error {
		recordedSleeps = append(recordedSleeps, duration)
		return nil
	}

	tests := []struct {
		name           string
		options        []Options
		expectedSleeps []time.Duration
		simulateErrors int
		expectedError  bool
	}{
		{
			name:           "fail all retries",
			options:        []Options{WithRetryCount(3), WithBackoffMultiplier(1), WithBackoffDurationType(time.Millisecond)},
			expectedSleeps: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond},
			simulateErrors: 3,
			expectedError:  true,
		},
		{
			name:           "succeeds on first try",
			options:        []Options{WithRetryCount(3), WithBackoffMultiplier(1), WithBackoffDurationType(time.Millisecond)},
			expectedSleeps: nil,
		},
		{
			name:           "succeeds on last try",
			options:        []Options{WithRetryCount(3), WithBackoffMultiplier(1), WithBackoffDurationType(time.Millisecond)},
			expectedSleeps: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond},
			simulateErrors: 2,
		},
		{
			name:           "succeeds midway",
			options:        []Options{WithRetryCount(5), WithBackoffMultiplier(1), WithBackoffDurationType(time.Millisecond)},
			expectedSleeps: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond},
			simulateErrors: 3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recordedSleeps = nil
			errorCount := 0

			_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (string, error) {
				if errorCount < tc.simulateErrors {
					errorCount++
					return "", errors.NewError("test error")
				}

				return "success", nil
			}, tc.options...)

			if tc.expectedError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.expectedSleeps, recordedSleeps)
		})
	}
}
