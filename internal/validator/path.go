package validator

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/backend"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/translator"
)

// AssistantLookup finds managed assistants by numeric id.
type AssistantLookup interface {
	Get(ctx context.Context, id int) (*managed.Assistant, error)
}

// PathValidator checks, before anything runs, that every hop of a path has
// a usable backend.
type PathValidator struct {
	providers  *translator.Registry
	assistants AssistantLookup
	factory    *assistant.Factory
	chats      *chat.Registry
}

func NewPathValidator(providers *translator.Registry, assistants AssistantLookup, factory *assistant.Factory, chats *chat.Registry) *PathValidator {
	return &PathValidator{
		providers:  providers,
		assistants: assistants,
		factory:    factory,
		chats:      chats,
	}
}

// ValidateAssistantID reports why id cannot serve a hop, or nil when it can.
func (v *PathValidator) ValidateAssistantID(ctx context.Context, id string, settings config.Settings) error {
	ref, err := backend.Parse(id)
	if err != nil {
		return errs.Wrap(errs.KindRouting, err, "unrecognised backend id")
	}

	switch r := ref.(type) {
	case backend.ProviderRef:
		return v.validateProvider(r.ProviderID, settings)
	case backend.ManagedRef:
		return v.validateManaged(ctx, r, settings)
	case backend.VendorAssistantRef:
		_, err := v.factory.Create(r.AssistantID, settings)
		return err
	}
	return errs.New(errs.KindRouting, "unrecognised backend id %q", id)
}

func (v *PathValidator) validateProvider(id string, settings config.Settings) error {
	if !settings.ProviderEnabled(id) {
		return errs.Config("provider %q is not enabled", id)
	}
	svc, err := v.providers.Get(id)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "provider %q is not registered", id)
	}
	if !svc.IsConfigured(settings.ServiceConfig(id)) {
		return errs.Config("provider %q is missing credentials", id)
	}
	return nil
}

func (v *PathValidator) validateManaged(ctx context.Context, ref backend.ManagedRef, settings config.Settings) error {
	a, err := v.assistants.Get(ctx, ref.AssistantID)
	if errors.Is(err, errs.ErrAssistantNotFound) {
		return errs.Wrap(errs.KindRouting, err, "managed assistant %d does not exist", ref.AssistantID)
	}
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, err, "managed assistant %d could not be loaded", ref.AssistantID)
	}
	if !a.Active {
		return errs.Config("managed assistant %q is inactive", a.Name)
	}
	if !v.chats.Has(a.Vendor) {
		return errs.Config("managed assistant %q uses unknown vendor %q", a.Name, a.Vendor)
	}
	cfg, enabled := settings.Vendor(a.Vendor)
	if !enabled {
		return errs.Config("vendor %q of managed assistant %q is not enabled", a.Vendor, a.Name)
	}
	if config.RequiresAPIKey(a.Vendor) && cfg.APIKey == "" {
		return errs.Config("vendor %q of managed assistant %q has no API key", a.Vendor, a.Name)
	}
	return nil
}

// PathReport collects the errors of every hop, keyed by "src_to_tgt".
type PathReport struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
	kinds  map[string]errs.Kind
}

// ValidatePath runs ValidateAssistantID on every hop of path and reports all
// failures at once.
func (v *PathValidator) ValidatePath(ctx context.Context, path resolver.Path, mapping map[string]string, settings config.Settings) PathReport {
	report := PathReport{Errors: map[string]string{}, kinds: map[string]errs.Kind{}}

	for _, hop := range path.Hops() {
		key := resolver.HopKey(hop[0], hop[1])
		id := strings.TrimSpace(mapping[key])
		if id == "" {
			report.add(key, errs.New(errs.KindRouting, "no backend configured for this hop"))
			continue
		}
		if err := v.ValidateAssistantID(ctx, id, settings); err != nil {
			report.add(key, err)
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func (r *PathReport) add(hop string, err error) {
	r.Errors[hop] = err.Error()
	r.kinds[hop] = errs.KindOf(err)
}

// Hops lists the failing hop keys in sorted order.
func (r PathReport) Hops() []string {
	keys := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Err folds the report into one error naming every failing hop, or nil for
// a valid report. Its kind is that of the first failing hop.
func (r PathReport) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	hops := r.Hops()
	parts := make([]string, len(hops))
	for i, h := range hops {
		parts[i] = "hop " + h + ": " + r.Errors[h]
	}
	kind := r.kinds[hops[0]]
	if kind == "" {
		kind = errs.KindConfiguration
	}
	e := errs.New(kind, "path validation failed: %s", strings.Join(parts, "; "))
	e.Op = "validate_path"
	return e
}
