package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

// StoreKey is the ConfigStore key holding stored workflows.
const StoreKey = "workflows"

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a workflow definition, naming every offending field.
func Validate(wf *Workflow) error {
	var problems []string
	if err := validate.Struct(wf); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errs.Wrap(errs.KindValidation, err, "workflow %q", wf.ID)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %s", strings.TrimPrefix(fe.Namespace(), "Workflow."), fe.Tag()))
		}
	}

	seen := make(map[string]bool, len(wf.Steps))
	for i, s := range wf.Steps {
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("steps[%d]: duplicate step id %q", i, s.ID))
		}
		seen[s.ID] = true
		for j, a := range s.OutputActions {
			if a.Type == ActionSaveSetting && strings.TrimSpace(a.Target) == "" {
				problems = append(problems, fmt.Sprintf("steps[%d].output_actions[%d]: save_setting needs a target key", i, j))
			}
		}
	}

	if len(problems) > 0 {
		return errs.New(errs.KindValidation, "workflow %q is invalid: %s", wf.ID, strings.Join(problems, "; "))
	}
	return nil
}

// document is the YAML file layout: either a "workflows" list or a single
// workflow at the top level.
type document struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Parse reads workflow definitions from YAML and validates each.
func Parse(data []byte) ([]Workflow, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid workflow YAML")
	}
	if len(doc.Workflows) == 0 {
		var single Workflow
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, errs.Wrap(errs.KindValidation, err, "invalid workflow YAML")
		}
		if single.ID == "" && len(single.Steps) == 0 {
			return nil, errs.New(errs.KindValidation, "no workflows defined")
		}
		doc.Workflows = []Workflow{single}
	}
	for i := range doc.Workflows {
		if err := Validate(&doc.Workflows[i]); err != nil {
			return nil, err
		}
	}
	return doc.Workflows, nil
}

// LoadFile reads and parses one YAML file.
func LoadFile(path string) ([]Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	wfs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wfs, nil
}

// Repository merges workflows stored in the ConfigStore with those defined in
// YAML files. Stored workflows win on id collisions.
type Repository struct {
	mu    sync.Mutex
	store store.ConfigStore
	files []string
}

func NewRepository(s store.ConfigStore, files ...string) *Repository {
	return &Repository{store: s, files: files}
}

func (r *Repository) stored(ctx context.Context) ([]Workflow, error) {
	var list []Workflow
	err := store.GetJSON(ctx, r.store, StoreKey, &list)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return list, err
}

// List returns every workflow, stored ones first.
func (r *Repository) List(ctx context.Context) ([]Workflow, error) {
	list, err := r.stored(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored workflows: %w", err)
	}
	seen := make(map[string]bool, len(list))
	for _, wf := range list {
		seen[wf.ID] = true
	}
	for _, path := range r.files {
		wfs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, wf := range wfs {
			if !seen[wf.ID] {
				seen[wf.ID] = true
				list = append(list, wf)
			}
		}
	}
	return list, nil
}

// Get returns the workflow with id.
func (r *Repository) Get(ctx context.Context, id string) (*Workflow, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, errs.Wrap(errs.KindValidation, errs.ErrNotFound, "workflow %q", id)
}

// Save validates wf and stores it, replacing a stored workflow with the
// same id.
func (r *Repository) Save(ctx context.Context, wf Workflow) error {
	if err := Validate(&wf); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.stored(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range list {
		if list[i].ID == wf.ID {
			list[i] = wf
			replaced = true
		}
	}
	if !replaced {
		list = append(list, wf)
	}
	return store.SetJSON(ctx, r.store, StoreKey, list)
}

// ForTranslation lists the enabled on_translation workflows for lang.
func (r *Repository) ForTranslation(ctx context.Context, lang string) ([]Workflow, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Workflow
	for _, wf := range list {
		if wf.RunsOnTranslation() && wf.MatchesLanguage(lang) {
			out = append(out, wf)
		}
	}
	return out, nil
}
