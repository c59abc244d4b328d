package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

// Poller reads a result key until the job completes or the budget of
// Attempts reads, Interval apart, runs out.
type Poller struct {
	jobs     store.JobStore
	Attempts int
	Interval time.Duration
}

func NewPoller(jobs store.JobStore, attempts int, interval time.Duration) *Poller {
	if attempts <= 0 {
		attempts = 1
	}
	return &Poller{jobs: jobs, Attempts: attempts, Interval: interval}
}

// Peek reads the result once. A job that has not finished reads as running.
func (p *Poller) Peek(ctx context.Context, key string) (*Result, error) {
	var res Result
	err := store.GetJSON(ctx, p.jobs, key, &res)
	if errors.Is(err, errs.ErrNotFound) {
		return &Result{Status: StatusRunning}, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Poll waits for a completed result. Exhausting the budget is a timeout
// error, distinct from a completed result that reports failure.
func (p *Poller) Poll(ctx context.Context, key string) (*Result, error) {
	for i := 0; i < p.Attempts; i++ {
		res, err := p.Peek(ctx, key)
		if err != nil {
			return nil, err
		}
		if res.Status == StatusCompleted {
			return res, nil
		}
		if i == p.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindTimeout, ctx.Err(), "polling %s cancelled", key)
		case <-time.After(p.Interval):
		}
	}
	return nil, errs.New(errs.KindTimeout, "job %s did not complete after %d polls", key, p.Attempts)
}
