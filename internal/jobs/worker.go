package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

// Handler performs one action. The payload is stored in the result even
// when err is set, so partial results stay visible.
type Handler func(ctx context.Context, rec *Record) (payload any, err error)

// Worker loads a record by token, runs its handler and writes the result.
type Worker struct {
	jobs     store.JobStore
	ttl      time.Duration
	handlers map[Action]Handler
	log      *logrus.Entry
	now      func() time.Time

	inflight sync.Map
}

func NewWorker(jobs store.JobStore, ttl time.Duration, log *logrus.Entry) *Worker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Worker{
		jobs:     jobs,
		ttl:      ttl,
		handlers: make(map[Action]Handler),
		log:      log,
		now:      time.Now,
	}
}

// Handle registers the handler of action.
func (w *Worker) Handle(action Action, h Handler) {
	w.handlers[action] = h
}

// Run executes the job stored under token. It returns an error only when no
// result could be written; handler failures and panics become a failed
// Result.
func (w *Worker) Run(ctx context.Context, token string) error {
	if _, busy := w.inflight.LoadOrStore(token, struct{}{}); busy {
		return nil
	}
	defer w.inflight.Delete(token)

	log := w.log.WithField("token", token)

	var rec Record
	if err := store.GetJSON(ctx, w.jobs, RecordKey(token), &rec); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("job %s: record expired or already processed", token)
		}
		return fmt.Errorf("job %s: %w", token, err)
	}
	log = log.WithField("action", rec.Action)

	key, err := ResultKey(rec.Action, token, rec.Args)
	if err != nil {
		// nowhere to report; the poller times out
		log.Errorf("cannot determine result key: %v", err)
		return err
	}

	start := w.now()
	payload, runErr := w.execute(ctx, &rec)

	result := Result{
		Status:      StatusCompleted,
		Success:     runErr == nil,
		Action:      rec.Action,
		CompletedAt: w.now(),
		Payload:     payload,
	}
	if runErr != nil {
		result.Error = runErr.Error()
		result.ErrorKind = errs.KindOf(runErr)
		log.WithField("error_kind", result.ErrorKind).Errorf("job failed: %v", runErr)
	} else {
		log.WithField("duration", result.CompletedAt.Sub(start)).Info("job completed")
	}

	// the result must land even if the caller's context is gone
	wctx := context.WithoutCancel(ctx)
	if err := store.PutJSON(wctx, w.jobs, key, result, w.ttl); err != nil {
		return fmt.Errorf("job %s: failed to write result: %w", token, err)
	}
	if err := w.jobs.Delete(wctx, RecordKey(token)); err != nil {
		log.Warnf("failed to delete job record: %v", err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, rec *Record) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithFields(logrus.Fields{
				"token": rec.Token,
				"stack": string(debug.Stack()),
			}).Error("job handler panicked")
			payload = nil
			err = errs.New(errs.KindWorkerCrash, "worker crashed: %v", r)
		}
	}()

	h, ok := w.handlers[rec.Action]
	if !ok {
		return nil, errs.Config("no handler for job action %q", rec.Action)
	}
	return h(ctx, rec)
}
