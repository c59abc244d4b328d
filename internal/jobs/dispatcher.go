package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

// DefaultTTL bounds how long records and results live.
const DefaultTTL = time.Hour

// launchBudget caps the time Spawn spends launching.
const launchBudget = 900 * time.Millisecond

// Ticket identifies a spawned job.
type Ticket struct {
	Token     string `json:"token"`
	Action    Action `json:"action"`
	ResultKey string `json:"result_key"`
	Launcher  string `json:"launcher"`
}

// Dispatcher validates job arguments, stores the record and launches a
// worker through the first launcher that succeeds.
type Dispatcher struct {
	jobs      store.JobStore
	ttl       time.Duration
	launchers []Launcher
	log       *logrus.Entry
	newToken  func() string
	now       func() time.Time
}

// NewDispatcher keeps the launchers whose capability probe passes, in the
// order given.
func NewDispatcher(jobs store.JobStore, ttl time.Duration, log *logrus.Entry, launchers ...Launcher) *Dispatcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Dispatcher{
		jobs:     jobs,
		ttl:      ttl,
		log:      log,
		newToken: uuid.NewString,
		now:      time.Now,
	}
	for _, l := range launchers {
		if l.Available() {
			d.launchers = append(d.launchers, l)
		} else {
			log.WithField("launcher", l.Name()).Info("launcher unavailable on this host")
		}
	}
	return d
}

// Launchers lists the names of the usable launchers.
func (d *Dispatcher) Launchers() []string {
	names := make([]string, len(d.launchers))
	for i, l := range d.launchers {
		names[i] = l.Name()
	}
	return names
}

// TTL is the lifetime of records and results.
func (d *Dispatcher) TTL() time.Duration { return d.ttl }

// Prepare validates args and stores the record without launching anything.
// Spawn and in-process callers share it.
func (d *Dispatcher) Prepare(ctx context.Context, action Action, args map[string]any) (*Ticket, error) {
	if err := ValidateArgs(action, args); err != nil {
		return nil, err
	}

	token := d.newToken()
	key, err := ResultKey(action, token, args)
	if err != nil {
		return nil, err
	}

	rec := Record{Token: token, Action: action, Args: args, CreatedAt: d.now(), TTL: d.ttl}
	if err := store.PutJSON(ctx, d.jobs, RecordKey(token), rec, d.ttl); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "failed to store job record")
	}
	return &Ticket{Token: token, Action: action, ResultKey: key}, nil
}

// Spawn stores a record for the job and launches its worker. It returns once
// a launcher reports success; the job itself runs elsewhere.
func (d *Dispatcher) Spawn(ctx context.Context, action Action, args map[string]any) (*Ticket, error) {
	if len(d.launchers) == 0 {
		return nil, errs.Config("no job launcher is available")
	}

	ticket, err := d.Prepare(ctx, action, args)
	if err != nil {
		return nil, err
	}
	log := d.log.WithFields(logrus.Fields{"token": ticket.Token, "action": action})

	ctx, cancel := context.WithTimeout(ctx, launchBudget)
	defer cancel()

	var failures []string
	for i, l := range d.launchers {
		if err := l.Launch(ctx, ticket.Token); err != nil {
			failures = append(failures, l.Name()+": "+err.Error())
			log.WithField("launcher", l.Name()).Warnf("launch failed: %v", err)
			continue
		}
		if i > 0 {
			log.WithField("launcher", l.Name()).Warn("job launched by fallback launcher")
		}
		ticket.Launcher = l.Name()
		log.WithField("launcher", l.Name()).Info("job spawned")
		return ticket, nil
	}

	if err := d.jobs.Delete(context.WithoutCancel(ctx), RecordKey(ticket.Token)); err != nil {
		log.Warnf("failed to remove orphaned job record: %v", err)
	}
	return nil, errs.New(errs.KindTransport, "could not launch %s job: %s", action, strings.Join(failures, "; "))
}
