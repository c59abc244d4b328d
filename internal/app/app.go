// Package app wires configuration into the engine: stores, registries,
// executors, the workflow engine and the job machinery. Every surface (CLI,
// HTTP, worker) goes through an App.
package app

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/executor"
	"github.com/valpere/polytran/internal/jobs"
	"github.com/valpere/polytran/internal/logging"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/orchestrator"
	"github.com/valpere/polytran/internal/posts"
	"github.com/valpere/polytran/internal/store"
	"github.com/valpere/polytran/internal/translator"
	"github.com/valpere/polytran/internal/validator"
	"github.com/valpere/polytran/internal/workflow"
)

type App struct {
	Config   *config.Config
	Settings config.Settings

	Backend    *store.Backend
	Providers  *translator.Registry
	Chats      *chat.Registry
	Factory    *assistant.Factory
	Assistants *managed.Repository
	Validator  *validator.PathValidator
	Paths      *orchestrator.PathExecutor
	Posts      *posts.Store
	Workflows  *workflow.Repository
	Engine     *workflow.Engine

	Dispatcher *jobs.Dispatcher
	Worker     *jobs.Worker
	Poller     *jobs.Poller

	log *logrus.Entry
}

// Options override parts of the wiring, mostly for tests.
type Options struct {
	Backend   *store.Backend
	Providers *translator.Registry
	Chats     *chat.Registry
	Factory   *assistant.Factory
	// Launchers replaces the launchers derived from the jobs configuration.
	Launchers []jobs.Launcher
	// WorkerArgs are passed to the re-executed binary before --token.
	WorkerArgs []string
}

// New builds an App from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:    cfg,
		Settings:  cfg.Settings(),
		Backend:   opts.Backend,
		Providers: opts.Providers,
		Chats:     opts.Chats,
		Factory:   opts.Factory,
		log:       logging.WithModule("app"),
	}

	if a.Backend == nil {
		b, err := store.Open(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.Backend = b
	}
	if a.Providers == nil {
		a.Providers = translator.NewDefaultRegistry()
	}
	if a.Chats == nil {
		a.Chats = chat.NewDefaultRegistry()
	}
	if a.Factory == nil {
		a.Factory = assistant.NewDefaultFactory()
	}

	a.Assistants = managed.NewRepository(a.Backend.Settings)
	managedExec := managed.NewExecutor(a.Chats, logging.WithModule("managed"))

	steps := executor.New(a.Providers, a.Assistants, managedExec, a.Factory, logging.WithModule("executor"))
	a.Validator = validator.NewPathValidator(a.Providers, a.Assistants, a.Factory, a.Chats)
	a.Paths = orchestrator.NewPathExecutor(steps, a.Validator, logging.WithModule("orchestrator"))
	if cfg.Translation.VerifyOutputLanguage {
		a.Paths.WithLanguageCheck(validator.NewLanguageChecker())
	}

	a.Posts = posts.New(a.Backend.Settings)
	a.Workflows = workflow.NewRepository(a.Backend.Settings, cfg.Workflows.Files...)
	a.Engine = workflow.NewEngine(workflow.Deps{
		Chats:      a.Chats,
		Assistants: a.Assistants,
		Managed:    managedExec,
		Factory:    a.Factory,
		Posts:      a.Posts,
		Settings:   a.Backend.Settings,
	}, logging.WithModule("workflow"))

	launchers := opts.Launchers
	if launchers == nil {
		launchers = defaultLaunchers(cfg, opts.WorkerArgs)
	}
	a.Dispatcher = jobs.NewDispatcher(a.Backend.Jobs, cfg.Jobs.TTL, logging.WithModule("dispatcher"), launchers...)
	a.Worker = jobs.NewWorker(a.Backend.Jobs, cfg.Jobs.TTL, logging.WithModule("worker"))
	a.Poller = jobs.NewPoller(a.Backend.Jobs, cfg.Jobs.PollAttempts, cfg.Jobs.PollInterval)

	a.Worker.Handle(jobs.ActionTranslate, a.handleTranslate)
	a.Worker.Handle(jobs.ActionWorkflowTest, a.handleWorkflowTest)
	a.Worker.Handle(jobs.ActionWorkflowExecute, a.handleWorkflowExecute)

	a.log.WithFields(logrus.Fields{
		"store":     cfg.Store.Driver,
		"launchers": a.Dispatcher.Launchers(),
		"providers": a.Providers.Names(),
	}).Debug("application wired")
	return a, nil
}

// defaultLaunchers prefers re-executing the binary and falls back to the
// loopback endpoint. An in-process store cannot be shared with a child
// process, so the memory driver only gets the loopback launcher.
func defaultLaunchers(cfg *config.Config, workerArgs []string) []jobs.Launcher {
	var out []jobs.Launcher
	disabled := make(map[string]bool, len(cfg.Jobs.DisabledLaunches))
	for _, name := range cfg.Jobs.DisabledLaunches {
		disabled[strings.ToLower(name)] = true
	}

	if cfg.Jobs.ProcessSpawn && !disabled["process"] && !strings.EqualFold(cfg.Store.Driver, "memory") {
		args := append([]string{"worker"}, workerArgs...)
		out = append(out, jobs.NewProcessLauncher(args...))
	}
	if cfg.Jobs.LoopbackURL != "" && !disabled["loopback"] {
		out = append(out, jobs.NewLoopbackLauncher(cfg.Jobs.LoopbackURL, cfg.Jobs.LoopbackTimeout, cfg.Jobs.DisabledLaunches...))
	}
	return out
}

func (a *App) Close() error {
	return a.Backend.Close()
}

// Start dispatches a job in the background.
func (a *App) Start(ctx context.Context, action jobs.Action, args map[string]any) (*jobs.Ticket, error) {
	return a.Dispatcher.Spawn(ctx, action, args)
}

// RunInline executes a job in the calling goroutine through the same record
// and result keys a background worker would use.
func (a *App) RunInline(ctx context.Context, action jobs.Action, args map[string]any) (*jobs.Ticket, *jobs.Result, error) {
	ticket, err := a.Dispatcher.Prepare(ctx, action, args)
	if err != nil {
		return nil, nil, err
	}
	ticket.Launcher = "inline"
	if err := a.Worker.Run(ctx, ticket.Token); err != nil {
		return ticket, nil, err
	}
	res, err := a.Poller.Peek(ctx, ticket.ResultKey)
	return ticket, res, err
}

// PurgeExpired drops expired job records and results.
func (a *App) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := a.Backend.Jobs.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.WithField("purged", n).Info("expired job entries removed")
	}
	return n, nil
}
