package retry

import (
	"context"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/ulogger"
)

type SetOptions struct {
	Message             string
	RetryCount          int
	BackoffMultiplier   int
	BackoffDurationType time.Duration
	ExponentialBackoff  bool
	BackoffFactor       float64
	MaxBackoff          time.Duration
	InfiniteRetry       bool
}

type Options func(*SetOptions)

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped error straight away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

func WithMessage(message string) Options {
	return func(o *SetOptions) {
		o.Message = message
	}
}

func WithRetryCount(retryCount int) Options {
	return func(o *SetOptions) {
		o.RetryCount = retryCount
	}
}

func WithBackoffMultiplier(backoffMultiplier int) Options {
	return func(o *SetOptions) {
		o.BackoffMultiplier = backoffMultiplier
	}
}

func WithBackoffDurationType(durationType time.Duration) Options {
	return func(o *SetOptions) {
		o.BackoffDurationType = durationType
	}
}

// WithExponentialBackoff multiplies the wait by the backoff factor after every failed attempt,
// capped at the max backoff.
func WithExponentialBackoff() Options {
	return func(o *SetOptions) {
		o.ExponentialBackoff = true
	}
}

func WithBackoffFactor(factor float64) Options {
	return func(o *SetOptions) {
		o.BackoffFactor = factor
	}
}

func WithMaxBackoff(maxBackoff time.Duration) Options {
	return func(o *SetOptions) {
		o.MaxBackoff = maxBackoff
	}
}

// WithInfiniteRetry retries until the function succeeds or the context is done.
func WithInfiniteRetry() Options {
	return func(o *SetOptions) {
		o.InfiniteRetry = true
	}
}

// Retry calls f until it succeeds, the retry count is exhausted or ctx is done. The error of the
// last attempt is returned when every attempt failed; the context error is returned when ctx ends
// first.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), opts ...Options) (T, error) {
	o := &SetOptions{
		Message:             "retrying",
		RetryCount:          3,
		BackoffMultiplier:   2,
		BackoffDurationType: time.Second,
		BackoffFactor:       2.0,
		MaxBackoff:          30 * time.Second,
	}

	for _, opt := range opts {
		opt(o)
	}

	var (
		result T
		err    error
	)

	backoff := o.BackoffDurationType

	for i := 0; o.InfiniteRetry || i < o.RetryCount; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return result, permanent.err
		}

		if !o.InfiniteRetry && i == o.RetryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d): %v", o.Message, i+1, err)

		if o.ExponentialBackoff {
			if sleepErr := sleepFunc(ctx, backoff); sleepErr != nil {
				return result, sleepErr
			}

			backoff = CappedExponentialBackoff(backoff, o.BackoffFactor, o.MaxBackoff)

			continue
		}

		if sleepErr := BackoffAndSleep(ctx, i, o.BackoffMultiplier, o.BackoffDurationType); sleepErr != nil {
			return result, sleepErr
		}
	}

	return result, err
}
