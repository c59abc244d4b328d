// Package jobs runs translations and workflow runs outside the calling
// request. A dispatcher stores a Record under a random token and launches a
// worker; the worker writes a Result that the initiator polls.
package jobs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/errs"
)

// Action names the unit of work a job performs.
type Action string

const (
	ActionTranslate       Action = "translate"
	ActionWorkflowTest    Action = "workflow_test"
	ActionWorkflowExecute Action = "workflow_execute"
)

// Status of a job result.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Record is written by the dispatcher immediately before launch and read
// once by the worker.
type Record struct {
	Token     string         `json:"token"`
	Action    Action         `json:"action"`
	Args      map[string]any `json:"args"`
	CreatedAt time.Time      `json:"created_at"`
	TTL       time.Duration  `json:"ttl"`
}

// Result is written once by the worker. A missing result reads as running.
type Result struct {
	Status      Status    `json:"status"`
	Success     bool      `json:"success"`
	Action      Action    `json:"action,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   errs.Kind `json:"error_kind,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Payload     any       `json:"payload,omitempty"`
}

// TranslateArgs are the arguments of a translate job.
type TranslateArgs struct {
	PostID     string `json:"post_id" validate:"required"`
	SourceLang string `json:"source_lang" validate:"required"`
	TargetLang string `json:"target_lang" validate:"required,nefield=SourceLang"`
	// SkipWorkflows suppresses the on_translation workflows.
	SkipWorkflows bool `json:"skip_workflows,omitempty"`
}

// WorkflowTestArgs run a workflow in test mode against a stored post or an
// inline bundle.
type WorkflowTestArgs struct {
	WorkflowID string                  `json:"workflow_id" validate:"required"`
	PostID     string                  `json:"post_id" validate:"required_without=Bundle"`
	Bundle     *internal.ContentBundle `json:"bundle,omitempty" validate:"required_without=PostID"`
	Language   string                  `json:"language,omitempty"`
}

// WorkflowExecuteArgs apply a workflow to a stored post.
type WorkflowExecuteArgs struct {
	ExecutionID string `json:"execution_id" validate:"required"`
	WorkflowID  string `json:"workflow_id" validate:"required"`
	PostID      string `json:"post_id" validate:"required"`
	Language    string `json:"language,omitempty"`
}

// Store keys.
const (
	recordPrefix          = "job_record:"
	translateResultPrefix = "job_result:"
	workflowTestPrefix    = "workflow_test:"
	workflowExecPrefix    = "workflow_execution:"
)

func RecordKey(token string) string { return recordPrefix + token }

// ResultKey is where the worker of a job writes its result. Workflow
// executions are keyed by execution id so callers can poll without the token.
func ResultKey(action Action, token string, args map[string]any) (string, error) {
	switch action {
	case ActionTranslate:
		return translateResultPrefix + token, nil
	case ActionWorkflowTest:
		return workflowTestPrefix + token, nil
	case ActionWorkflowExecute:
		var a WorkflowExecuteArgs
		if err := DecodeArgs(args, &a); err != nil {
			return "", err
		}
		return workflowExecPrefix + a.ExecutionID, nil
	}
	return "", errs.New(errs.KindValidation, "unknown job action %q", action)
}

// TranslateResultKey, WorkflowTestResultKey and WorkflowExecutionResultKey
// name the result keys the poll endpoints read.
func TranslateResultKey(token string) string          { return translateResultPrefix + token }
func WorkflowTestResultKey(token string) string       { return workflowTestPrefix + token }
func WorkflowExecutionResultKey(execID string) string { return workflowExecPrefix + execID }

// DecodeArgs converts a job's argument map into the typed args struct.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return errs.Wrap(errs.KindValidation, err, "invalid job arguments")
	}
	return nil
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ArgsFrom converts a typed args struct into the map stored in a Record.
func ArgsFrom(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateArgs checks the arguments required by action.
func ValidateArgs(action Action, args map[string]any) error {
	var target any
	switch action {
	case ActionTranslate:
		target = &TranslateArgs{}
	case ActionWorkflowTest:
		target = &WorkflowTestArgs{}
	case ActionWorkflowExecute:
		target = &WorkflowExecuteArgs{}
	default:
		return errs.New(errs.KindValidation, "unknown job action %q", action)
	}

	if err := DecodeArgs(args, target); err != nil {
		return err
	}
	if err := validate.Struct(target); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
			}
			return errs.New(errs.KindValidation, "%s job: invalid arguments: %v", action, fields)
		}
		return errs.Wrap(errs.KindValidation, err, "%s job: invalid arguments", action)
	}
	return nil
}
