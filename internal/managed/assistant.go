// Package managed holds centrally configured assistants: a vendor, a model
// and a pair of prompt templates, independent of any vendor's native
// assistant feature.
package managed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

// Format is the output a managed assistant promises.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// StoreKey is the ConfigStore key holding the assistant list.
const StoreKey = "managed_assistants"

// Assistant is one stored assistant definition.
type Assistant struct {
	ID              int      `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Vendor          string   `json:"vendor" yaml:"vendor"`
	Model           string   `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt    string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	UserMessage     string   `json:"user_message" yaml:"user_message"`
	ExpectedFormat  Format   `json:"expected_format" yaml:"expected_format"`
	OutputVariables []string `json:"output_variables,omitempty" yaml:"output_variables,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Active          bool     `json:"active" yaml:"active"`
}

// WantsJSON reports whether the assistant answers with a JSON object.
func (a *Assistant) WantsJSON() bool {
	return strings.EqualFold(string(a.ExpectedFormat), string(FormatJSON))
}

func (a *Assistant) validate() error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return errs.New(errs.KindValidation, "assistant name is required")
	case strings.TrimSpace(a.Vendor) == "":
		return errs.New(errs.KindValidation, "assistant %q: vendor is required", a.Name)
	case strings.TrimSpace(a.UserMessage) == "":
		return errs.New(errs.KindValidation, "assistant %q: user message template is required", a.Name)
	}
	switch Format(strings.ToLower(string(a.ExpectedFormat))) {
	case "", FormatText, FormatJSON:
	default:
		return errs.New(errs.KindValidation, "assistant %q: unknown expected format %q", a.Name, a.ExpectedFormat)
	}
	return nil
}

// Repository keeps the assistant list as one JSON document in the settings
// store. Writers in one process are serialised by mu.
type Repository struct {
	mu    sync.Mutex
	store store.ConfigStore
}

func NewRepository(s store.ConfigStore) *Repository {
	return &Repository{store: s}
}

// List returns every assistant ordered by id.
func (r *Repository) List(ctx context.Context) ([]Assistant, error) {
	var list []Assistant
	err := store.GetJSON(ctx, r.store, StoreKey, &list)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load managed assistants: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Get returns the assistant with id, or an error wrapping
// errs.ErrAssistantNotFound.
func (r *Repository) Get(ctx context.Context, id int) (*Assistant, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("%w: managed_%d", errs.ErrAssistantNotFound, id)
}

// Save inserts a (ID zero gets the next free id) or replaces the assistant
// with the same id.
func (r *Repository) Save(ctx context.Context, a *Assistant) error {
	if err := a.validate(); err != nil {
		return err
	}
	a.ExpectedFormat = Format(strings.ToLower(string(a.ExpectedFormat)))
	if a.ExpectedFormat == "" {
		a.ExpectedFormat = FormatText
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return err
	}

	maxID := 0
	replaced := false
	for i := range list {
		if list[i].ID > maxID {
			maxID = list[i].ID
		}
		if a.ID != 0 && list[i].ID == a.ID {
			list[i] = *a
			replaced = true
		}
	}
	if !replaced {
		if a.ID == 0 {
			a.ID = maxID + 1
		}
		list = append(list, *a)
	}
	return store.SetJSON(ctx, r.store, StoreKey, list)
}

// Delete removes the assistant with id.
func (r *Repository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	if len(out) == len(list) {
		return fmt.Errorf("%w: managed_%d", errs.ErrAssistantNotFound, id)
	}
	return store.SetJSON(ctx, r.store, StoreKey, out)
}
