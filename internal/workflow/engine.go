package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/postprocess"
	"github.com/valpere/polytran/internal/retry"
	"github.com/valpere/polytran/internal/template"
)

var tracer = otel.Tracer("github.com/valpere/polytran/internal/workflow")

// StepResult is recorded for every attempted step.
type StepResult struct {
	StepID           string         `json:"step_id"`
	StepName         string         `json:"step_name,omitempty"`
	Success          bool           `json:"success"`
	Data             any            `json:"data,omitempty"`
	Error            string         `json:"error,omitempty"`
	ErrorKind        errs.Kind      `json:"error_kind,omitempty"`
	OutputProcessing []ActionResult `json:"output_processing,omitempty"`
	Duration         time.Duration  `json:"duration"`
}

// Result is the outcome of a run. Success is false when any step failed.
type Result struct {
	WorkflowID string                 `json:"workflow_id"`
	Success    bool                   `json:"success"`
	TestMode   bool                   `json:"test_mode"`
	Stopped    bool                   `json:"stopped,omitempty"`
	Steps      []StepResult           `json:"step_results"`
	Context    map[string]any         `json:"final_context"`
	Bundle     internal.ContentBundle `json:"bundle"`
	Changed    bool                   `json:"changed"`
	Error      string                 `json:"error,omitempty"` // persisting the output failed
}

// Target names the post a run writes back to; an empty PostID leaves
// storage untouched.
type Target struct {
	PostID   string
	Language string
}

// Options tune one run.
type Options struct {
	TestMode    bool
	StopOnError bool // used when the workflow does not set stop_on_error
	Target      Target
}

// AssistantLookup finds managed assistants by numeric id.
type AssistantLookup interface {
	Get(ctx context.Context, id int) (*managed.Assistant, error)
}

// PostWriter persists the post a run modified.
type PostWriter interface {
	Save(ctx context.Context, id string, b internal.ContentBundle) error
	SaveTranslation(ctx context.Context, id, lang string, b internal.ContentBundle) error
}

// SettingWriter receives save_setting actions.
type SettingWriter interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Engine executes workflows.
type Engine struct {
	chats      *chat.Registry
	assistants AssistantLookup
	managed    *managed.Executor
	factory    *assistant.Factory
	posts      PostWriter
	settings   SettingWriter
	log        *logrus.Entry
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Chats      *chat.Registry
	Assistants AssistantLookup
	Managed    *managed.Executor
	Factory    *assistant.Factory
	Posts      PostWriter
	Settings   SettingWriter
}

func NewEngine(d Deps, log *logrus.Entry) *Engine {
	return &Engine{
		chats:      d.Chats,
		assistants: d.Assistants,
		managed:    d.Managed,
		factory:    d.Factory,
		posts:      d.Posts,
		settings:   d.Settings,
		log:        log,
	}
}

// InitialContext is the variable context a run starts from.
func InitialContext(b internal.ContentBundle, t Target) map[string]any {
	return map[string]any{
		"post":       b.AsMap(),
		"translated": b.AsMap(),
		"post_id":    t.PostID,
		"language":   t.Language,
		"steps":      map[string]any{},
	}
}

// run is the mutable state of one execution.
type run struct {
	vars    map[string]any
	bundle  internal.ContentBundle
	changed bool
	pending map[string]string // save_setting writes, applied after the run
}

// Execute runs the enabled steps of wf in order against bundle. Disabled
// steps produce no result. A failing step leaves the context untouched and,
// unless stop_on_error is set, the next step runs on what it inherits.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, bundle internal.ContentBundle, vars map[string]any, opts Options, settings config.Settings) Result {
	ctx, span := tracer.Start(ctx, "execute_workflow")
	defer span.End()
	span.SetAttributes(attribute.String("polytran.workflow_id", wf.ID), attribute.Bool("polytran.test_mode", opts.TestMode))

	stopOnError := opts.StopOnError
	if wf.StopOnError != nil {
		stopOnError = *wf.StopOnError
	}

	if vars == nil {
		vars = InitialContext(bundle, opts.Target)
	}
	r := &run{vars: vars, bundle: bundle.Clone(), pending: map[string]string{}}
	res := Result{WorkflowID: wf.ID, Success: true, TestMode: opts.TestMode}
	log := e.log.WithFields(logrus.Fields{"workflow_id": wf.ID, "test_mode": opts.TestMode})

	for i := range wf.Steps {
		step := &wf.Steps[i]
		if !step.Enabled {
			log.WithField("step_id", step.ID).Debug("step disabled, skipping")
			continue
		}

		sr := e.runStep(ctx, step, r, opts, settings)
		res.Steps = append(res.Steps, sr)
		if sr.Success {
			continue
		}

		res.Success = false
		log.WithFields(logrus.Fields{"step_id": step.ID, "error_kind": sr.ErrorKind}).Warnf("step failed: %s", sr.Error)
		if stopOnError {
			res.Stopped = true
			break
		}
	}

	if !opts.TestMode {
		if err := e.persist(ctx, r, opts.Target); err != nil {
			res.Success = false
			res.Error = err.Error()
			log.WithError(err).Error("failed to persist workflow output")
		}
	}

	res.Context = r.vars
	res.Bundle = r.bundle
	res.Changed = r.changed
	if !res.Success {
		span.SetStatus(codes.Error, "workflow had failing steps")
	}
	log.WithFields(logrus.Fields{"steps": len(res.Steps), "success": res.Success}).Info("workflow finished")
	return res
}

func (e *Engine) runStep(ctx context.Context, step *Step, r *run, opts Options, settings config.Settings) StepResult {
	ctx, span := tracer.Start(ctx, "workflow_step")
	defer span.End()
	span.SetAttributes(attribute.String("polytran.step_id", step.ID), attribute.String("polytran.step_kind", string(step.Kind)))

	start := time.Now()
	sr := StepResult{StepID: step.ID, StepName: step.Name}
	fail := func(err error) StepResult {
		scoped := errs.AtStep(err, step.Label())
		sr.Error, sr.ErrorKind = scoped.Error(), scoped.Kind
		sr.Duration = time.Since(start)
		span.SetStatus(codes.Error, sr.Error)
		return sr
	}

	raw, data, outVars, err := e.call(ctx, step, r.vars, settings)
	if err != nil {
		return fail(err)
	}

	merged := merge(r.vars, step.ID, raw, data, outVars)
	sr.Data = merged

	actions, err := e.applyActions(ctx, step, r, raw, opts.TestMode)
	sr.OutputProcessing = actions
	if err != nil {
		return fail(err)
	}

	sr.Success = true
	sr.Duration = time.Since(start)
	return sr
}

// call routes the step to its backend. It returns the raw reply, the
// decoded object for JSON steps, and the declared output variables. A JSON
// step whose reply does not decode fails before the context is touched.
func (e *Engine) call(ctx context.Context, step *Step, vars map[string]any, settings config.Settings) (string, map[string]any, []string, error) {
	wantJSON := strings.EqualFold(string(step.ExpectedFormat), string(managed.FormatJSON))

	switch step.Kind {
	case KindCustomAssistant:
		a := &managed.Assistant{
			Name:           step.Label(),
			Vendor:         step.Vendor,
			Model:          step.Model,
			SystemPrompt:   step.SystemPrompt,
			UserMessage:    step.UserMessage,
			ExpectedFormat: managed.FormatText,
			Temperature:    step.Temperature,
			MaxTokens:      step.MaxTokens,
		}
		if wantJSON {
			a.ExpectedFormat = managed.FormatJSON
		}
		out, err := e.managed.Execute(ctx, a, vars, settings)
		if err != nil {
			return "", nil, nil, err
		}
		return out.Raw, out.Data, step.OutputVariables, nil

	case KindPredefinedAssistant:
		client, err := e.factory.Create(step.AssistantID, settings)
		if err != nil {
			return "", nil, nil, err
		}
		vendorCfg, _ := settings.Vendor(client.Vendor())
		message := template.Render(step.UserMessage, vars)
		raw, err := retry.Do(ctx, retry.Policy{Timeout: vendorCfg.Timeout}, func(ctx context.Context) (string, error) {
			return client.Prompt(ctx, step.AssistantID, message)
		})
		if err != nil || !wantJSON {
			return raw, nil, step.OutputVariables, err
		}
		data, err := postprocess.DecodeObject(raw)
		if err != nil {
			return "", nil, nil, errs.Wrap(errs.KindFormat, err, "step declared json output")
		}
		return raw, data, step.OutputVariables, nil

	case KindManagedAssistant:
		a, err := e.assistants.Get(ctx, step.ManagedID)
		if err != nil {
			return "", nil, nil, errs.Wrap(errs.KindRouting, err, "managed assistant %d", step.ManagedID)
		}
		if !a.Active {
			return "", nil, nil, errs.Config("managed assistant %q is inactive", a.Name)
		}
		if strings.TrimSpace(step.UserMessage) != "" {
			c := *a
			c.UserMessage = step.UserMessage
			a = &c
		}
		out, err := e.managed.Execute(ctx, a, vars, settings)
		if err != nil {
			return "", nil, nil, err
		}
		declared := a.OutputVariables
		if len(step.OutputVariables) > 0 {
			declared = step.OutputVariables
		}
		return out.Raw, out.Data, declared, nil
	}
	return "", nil, nil, errs.New(errs.KindValidation, "unknown step kind %q", step.Kind)
}

// merge writes the step output into vars. JSON steps contribute their
// declared variables, or every top-level key when none are declared;
// plain-text steps contribute the reply under ResponseVariable. The reply is
// also kept under steps.<id>.
func merge(vars map[string]any, stepID, raw string, data map[string]any, declared []string) map[string]any {
	added := make(map[string]any)
	switch {
	case data == nil:
		added[ResponseVariable] = raw
	case len(declared) > 0:
		for _, name := range declared {
			if v, ok := template.Lookup(data, name); ok {
				added[name] = v
			}
		}
	default:
		for k, v := range data {
			added[k] = v
		}
	}
	for k, v := range added {
		vars[k] = v
	}

	steps, ok := vars["steps"].(map[string]any)
	if !ok {
		steps = map[string]any{}
		vars["steps"] = steps
	}
	entry := map[string]any{"response": raw}
	if data != nil {
		entry["data"] = data
	}
	steps[stepID] = entry
	return added
}
