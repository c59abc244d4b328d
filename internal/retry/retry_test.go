package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/polytran/internal/errs"
)

var fast = Policy{Delay: time.Millisecond}

func TestDo_SucceedsFirstTime(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransportOnce(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fast, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errs.Transport(errors.New("connection reset"), "request failed")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestDo_GivesUpAfterOneRetry(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, func(ctx context.Context) (int, error) {
		calls++
		return 0, errs.Transport(errors.New("503"), "vendor unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestDo_FormatErrorsNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast, func(ctx context.Context) (int, error) {
		calls++
		return 0, errs.Format("garbage")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))
}

func TestDo_AttemptTimeoutRetried(t *testing.T) {
	calls := 0
	p := Policy{Timeout: 20 * time.Millisecond, Delay: time.Millisecond}
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestDo_CancelledParentNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fast, func(ctx context.Context) (int, error) {
		calls++
		return 0, errs.Transport(ctx.Err(), "request failed")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
