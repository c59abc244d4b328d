// Package workflow runs post-processing pipelines of AI steps over
// translated content. Steps share a variable context and write back to the
// post through output actions.
package workflow

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
)

// StepKind selects how a step reaches its model.
type StepKind string

const (
	KindCustomAssistant     StepKind = "custom_assistant"
	KindPredefinedAssistant StepKind = "predefined_assistant"
	KindManagedAssistant    StepKind = "managed_assistant"
)

// ActionType is what an output action does with a value.
type ActionType string

const (
	ActionUpdateTitle           ActionType = "update_post_title"
	ActionUpdateContent         ActionType = "update_post_content"
	ActionUpdateExcerpt         ActionType = "update_post_excerpt"
	ActionUpdateMeta            ActionType = "update_post_meta"
	ActionAppendContent         ActionType = "append_to_post_content"
	ActionPrependContent        ActionType = "prepend_to_post_content"
	ActionUpdateContentMarkdown ActionType = "update_post_content_markdown"
	ActionSaveSetting           ActionType = "save_setting"
)

// Trigger decides when a workflow runs on its own.
type Trigger string

const (
	TriggerOnTranslation Trigger = "on_translation"
	TriggerManual        Trigger = "manual"
)

// ResponseVariable holds the raw reply of a plain-text step.
const ResponseVariable = "assistant_response"

// OutputAction applies one context value to the post or settings. An empty
// SourceVariable uses the step's raw response.
type OutputAction struct {
	SourceVariable string     `json:"source_variable,omitempty" yaml:"source_variable,omitempty"`
	Type           ActionType `json:"type" yaml:"type" validate:"oneof=update_post_title update_post_content update_post_excerpt update_post_meta append_to_post_content prepend_to_post_content update_post_content_markdown save_setting"`
	Target         string     `json:"target,omitempty" yaml:"target,omitempty" validate:"required_if=Type update_post_meta"`
}

// Step is one AI call. Which fields apply depends on Kind.
type Step struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Kind    StepKind `json:"kind" yaml:"kind" validate:"oneof=custom_assistant predefined_assistant managed_assistant"`

	// custom_assistant
	Vendor       string `json:"vendor,omitempty" yaml:"vendor,omitempty" validate:"required_if=Kind custom_assistant"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// predefined_assistant
	AssistantID string `json:"assistant_id,omitempty" yaml:"assistant_id,omitempty" validate:"required_if=Kind predefined_assistant"`

	// managed_assistant
	ManagedID int `json:"managed_id,omitempty" yaml:"managed_id,omitempty" validate:"required_if=Kind managed_assistant"`

	UserMessage     string         `json:"user_message,omitempty" yaml:"user_message,omitempty" validate:"required_unless=Kind managed_assistant"`
	ExpectedFormat  managed.Format `json:"expected_format,omitempty" yaml:"expected_format,omitempty" validate:"omitempty,oneof=json text"`
	OutputVariables []string       `json:"output_variables,omitempty" yaml:"output_variables,omitempty"`
	Temperature     *float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens       *int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	OutputActions []OutputAction `json:"output_actions,omitempty" yaml:"output_actions,omitempty" validate:"dive"`
}

// Label names the step in logs and errors.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Steps default to enabled when the field is absent.
type rawStep Step

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	r := rawStep{Enabled: true}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*s = Step(r)
	return nil
}

func (s *Step) UnmarshalJSON(data []byte) error {
	r := rawStep{Enabled: true}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*s = Step(r)
	return nil
}

// Workflow is an ordered list of steps.
type Workflow struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Languages   []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Trigger     Trigger  `json:"trigger,omitempty" yaml:"trigger,omitempty" validate:"omitempty,oneof=on_translation manual"`
	StopOnError *bool    `json:"stop_on_error,omitempty" yaml:"stop_on_error,omitempty"`
	Steps       []Step   `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// MatchesLanguage reports whether the workflow applies to lang. An empty
// filter, or one containing "all", matches every language.
func (w *Workflow) MatchesLanguage(lang string) bool {
	if len(w.Languages) == 0 {
		return true
	}
	lang = resolver.Canonical(lang)
	for _, l := range w.Languages {
		c := resolver.Canonical(l)
		if c == resolver.Wildcard || c == lang {
			return true
		}
		if base, _, _ := strings.Cut(lang, "-"); c == base {
			return true
		}
	}
	return false
}

// RunsOnTranslation reports whether the workflow is triggered by finished
// translations.
func (w *Workflow) RunsOnTranslation() bool {
	return w.Enabled && (w.Trigger == "" || w.Trigger == TriggerOnTranslation)
}

type rawWorkflow Workflow

func (w *Workflow) UnmarshalYAML(value *yaml.Node) error {
	r := rawWorkflow{Enabled: true}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*w = Workflow(r)
	return nil
}

func (w *Workflow) UnmarshalJSON(data []byte) error {
	r := rawWorkflow{Enabled: true}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*w = Workflow(r)
	return nil
}
