// Package assistant runs vendor-native assistants (OpenAI Assistants, Gemini
// tuned models) and picks the vendor for an assistant id.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/postprocess"
)

// Client executes one vendor's native assistants.
type Client interface {
	Vendor() string
	SupportsAssistantID(id string) bool
	// ExecuteAssistant translates bundle with the assistant and returns a new
	// bundle. Output that does not decode to a bundle is invalid_output_format.
	ExecuteAssistant(ctx context.Context, id string, bundle internal.ContentBundle, source, target string) (internal.ContentBundle, error)
	// Prompt sends a free-form message and returns the raw reply.
	Prompt(ctx context.Context, id, message string) (string, error)
}

// Vendor registers one assistant vendor with the factory.
type Vendor struct {
	Name     string
	Supports func(id string) bool
	New      func(cfg config.VendorConfig) Client
}

// Factory matches assistant ids against registered vendors in registration
// order; the first vendor whose predicate accepts the id wins.
type Factory struct {
	vendors []Vendor
}

func NewFactory() *Factory {
	return &Factory{}
}

// NewDefaultFactory registers the built-in vendors.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	f.Register(Vendor{Name: "openai", Supports: IsOpenAIAssistant, New: func(cfg config.VendorConfig) Client { return NewOpenAIClient(cfg) }})
	f.Register(Vendor{Name: "gemini", Supports: IsGeminiAssistant, New: func(cfg config.VendorConfig) Client { return NewGeminiClient(cfg) }})
	return f
}

func (f *Factory) Register(v Vendor) {
	f.vendors = append(f.vendors, v)
}

// VendorFor returns the name of the vendor that owns id.
func (f *Factory) VendorFor(id string) (string, bool) {
	for _, v := range f.vendors {
		if v.Supports(id) {
			return v.Name, true
		}
	}
	return "", false
}

// Create builds the client for id. It returns an error, never a half-built
// client, when no vendor recognises the id, the vendor is disabled, or its
// credential is missing.
func (f *Factory) Create(id string, settings config.Settings) (Client, error) {
	name, ok := f.VendorFor(id)
	if !ok {
		return nil, errs.Wrap(errs.KindRouting, errs.ErrVendorUnsupported, "cannot determine vendor for assistant %q", id)
	}
	cfg, enabled := settings.Vendor(name)
	if !enabled {
		return nil, errs.Config("vendor %q for assistant %q is not enabled", name, id)
	}
	if config.RequiresAPIKey(name) && cfg.APIKey == "" {
		return nil, errs.Config("vendor %q has no API key configured", name)
	}
	for _, v := range f.vendors {
		if v.Name == name {
			return v.New(cfg), nil
		}
	}
	return nil, errs.Wrap(errs.KindRouting, errs.ErrVendorUnsupported, "vendor %q", name)
}

// translationFields is the JSON shape exchanged with assistants.
type translationFields struct {
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Excerpt string            `json:"excerpt"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// TranslationPrompt asks an assistant to translate a bundle and answer with
// a JSON object of the same shape.
func TranslationPrompt(b internal.ContentBundle, source, target string) string {
	payload, _ := json.MarshalIndent(translationFields{
		Title:   b.Title,
		Content: b.Content,
		Excerpt: b.Excerpt,
		Meta:    b.Meta,
	}, "", "  ")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Translate every string value of the JSON object below from %s to %s.\n", source, target))
	sb.WriteString("Keep HTML tags, shortcodes and block comments unchanged. Keep the keys unchanged. ")
	sb.WriteString("Respond with the translated JSON object only.\n\n")
	sb.Write(payload)
	return sb.String()
}

// DecodeBundle reads an assistant reply into a copy of original. Fields the
// reply omits keep their original value.
func DecodeBundle(reply string, original internal.ContentBundle) (internal.ContentBundle, error) {
	obj, err := postprocess.DecodeObject(reply)
	if err != nil {
		return original, errs.Wrap(errs.KindFormat, err, "assistant reply is not a JSON object")
	}

	out := original.Clone()
	found := false
	for key, dst := range map[string]*string{"title": &out.Title, "content": &out.Content, "excerpt": &out.Excerpt} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return original, errs.Format("assistant reply field %q is not a string", key)
		}
		*dst = s
		found = true
	}
	if meta, ok := obj["meta"].(map[string]any); ok {
		if out.Meta == nil {
			out.Meta = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			if s, ok := v.(string); ok {
				out.Meta[k] = s
				found = true
			}
		}
	}
	if !found {
		return original, errs.Format("assistant reply carries none of title, content, excerpt, meta")
	}
	return out, nil
}
