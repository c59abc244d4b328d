package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/jobs"
	"github.com/valpere/polytran/internal/orchestrator"
	"github.com/valpere/polytran/internal/workflow"
)

// TranslatePayload is the result payload of a translate job.
type TranslatePayload struct {
	PostID    string                  `json:"post_id"`
	Language  string                  `json:"language"`
	Path      orchestrator.PathResult `json:"path"`
	Workflows []workflow.Result       `json:"workflows,omitempty"`
}

// Translate runs a path over bundle with the configured rules and mapping.
func (a *App) Translate(ctx context.Context, b internal.ContentBundle, source, target string) orchestrator.PathResult {
	return a.Paths.Execute(ctx, orchestrator.PathRequest{
		Bundle:  b,
		Source:  source,
		Target:  target,
		Rules:   a.Config.Translation.Rules,
		Mapping: a.Config.Translation.Mapping,
	}, a.Settings)
}

func (a *App) handleTranslate(ctx context.Context, rec *jobs.Record) (any, error) {
	var args jobs.TranslateArgs
	if err := jobs.DecodeArgs(rec.Args, &args); err != nil {
		return nil, err
	}

	post, err := a.Posts.Get(ctx, args.PostID)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "post %s", args.PostID)
	}

	payload := &TranslatePayload{PostID: args.PostID, Language: args.TargetLang}
	payload.Path = a.Translate(ctx, post, args.SourceLang, args.TargetLang)
	if !payload.Path.Success {
		return payload, errs.New(payload.Path.ErrorKind, "%s", payload.Path.Error)
	}

	translated := *payload.Path.Bundle
	if err := a.Posts.SaveTranslation(ctx, args.PostID, args.TargetLang, translated); err != nil {
		return payload, errs.Wrap(errs.KindTransport, err, "failed to save translation")
	}

	if args.SkipWorkflows {
		return payload, nil
	}
	wfs, err := a.Workflows.ForTranslation(ctx, args.TargetLang)
	if err != nil {
		return payload, err
	}
	target := workflow.Target{PostID: args.PostID, Language: args.TargetLang}
	for i := range wfs {
		// each workflow starts from what the previous one saved
		res := a.runWorkflow(ctx, &wfs[i], translated, workflow.Options{Target: target})
		payload.Workflows = append(payload.Workflows, res)
		if res.Changed {
			translated = res.Bundle
		}
	}
	return payload, nil
}

func (a *App) handleWorkflowTest(ctx context.Context, rec *jobs.Record) (any, error) {
	var args jobs.WorkflowTestArgs
	if err := jobs.DecodeArgs(rec.Args, &args); err != nil {
		return nil, err
	}

	wf, err := a.Workflows.Get(ctx, args.WorkflowID)
	if err != nil {
		return nil, err
	}

	var b internal.ContentBundle
	if args.Bundle != nil {
		b = *args.Bundle
	} else if b, err = a.loadPost(ctx, args.PostID, args.Language); err != nil {
		return nil, err
	}

	res := a.runWorkflow(ctx, wf, b, workflow.Options{
		TestMode: true,
		Target:   workflow.Target{PostID: args.PostID, Language: args.Language},
	})
	return res, workflowErr(&res)
}

func (a *App) handleWorkflowExecute(ctx context.Context, rec *jobs.Record) (any, error) {
	var args jobs.WorkflowExecuteArgs
	if err := jobs.DecodeArgs(rec.Args, &args); err != nil {
		return nil, err
	}

	wf, err := a.Workflows.Get(ctx, args.WorkflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Enabled {
		return nil, errs.Config("workflow %q is disabled", wf.ID)
	}
	b, err := a.loadPost(ctx, args.PostID, args.Language)
	if err != nil {
		return nil, err
	}

	res := a.runWorkflow(ctx, wf, b, workflow.Options{
		Target: workflow.Target{PostID: args.PostID, Language: args.Language},
	})
	return res, workflowErr(&res)
}

// RunWorkflow runs wf in the calling goroutine.
func (a *App) RunWorkflow(ctx context.Context, wf *workflow.Workflow, b internal.ContentBundle, opts workflow.Options) workflow.Result {
	return a.runWorkflow(ctx, wf, b, opts)
}

func (a *App) runWorkflow(ctx context.Context, wf *workflow.Workflow, b internal.ContentBundle, opts workflow.Options) workflow.Result {
	if !opts.StopOnError {
		opts.StopOnError = a.Config.Workflows.StopOnError
	}
	a.log.WithFields(logrus.Fields{"workflow_id": wf.ID, "post_id": opts.Target.PostID}).Debug("running workflow")
	return a.Engine.Execute(ctx, wf, b, nil, opts, a.Settings)
}

// loadPost reads the translation in lang, or the original when lang is empty.
func (a *App) loadPost(ctx context.Context, id, lang string) (internal.ContentBundle, error) {
	var (
		b   internal.ContentBundle
		err error
	)
	if lang != "" {
		b, err = a.Posts.GetTranslation(ctx, id, lang)
	} else {
		b, err = a.Posts.Get(ctx, id)
	}
	if err != nil {
		return b, errs.Wrap(errs.KindValidation, err, "post %s", id)
	}
	return b, nil
}

// workflowErr summarises failed steps; the full result is kept as payload.
func workflowErr(res *workflow.Result) error {
	if res.Success {
		return nil
	}
	if res.Error != "" {
		return errs.New(errs.KindTransport, "workflow %s: %s", res.WorkflowID, res.Error)
	}
	failed, kind := 0, errs.KindUnknown
	for _, s := range res.Steps {
		if !s.Success {
			if failed == 0 {
				kind = s.ErrorKind
			}
			failed++
		}
	}
	return errs.New(kind, "workflow %s: %d of %d steps failed", res.WorkflowID, failed, len(res.Steps))
}
