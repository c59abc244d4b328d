// Package retry runs outbound vendor calls under a per-attempt timeout and
// retries them exactly once when the failure is a transport error.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/valpere/polytran/internal/errs"
)

// Policy configures one outbound call.
type Policy struct {
	Timeout time.Duration // per attempt; zero means no extra deadline
	Delay   time.Duration // pause before the single retry
}

// DefaultDelay separates the first attempt from the retry.
const DefaultDelay = 250 * time.Millisecond

// Do calls fn at most twice. The second attempt happens only when the first
// fails with a retryable error or its attempt deadline expires while ctx is
// still live. Non-retryable errors are returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var out T
	op := func() error {
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		v, err := fn(attemptCtx)
		if err == nil {
			out = v
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return errs.Wrap(errs.KindTransport, err, "call timed out after %s", p.Timeout)
		}
		if !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), 1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
