package managed

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/postprocess"
	"github.com/valpere/polytran/internal/template"
)

// Output is the result of one assistant run.
type Output struct {
	Raw       string
	Data      map[string]any // decoded object, JSON assistants only
	Variables map[string]any // declared output variables found in Data
	Response  *chat.Response
}

// Executor renders an assistant's templates and runs them on its vendor.
type Executor struct {
	chats *chat.Registry
	log   *logrus.Entry
}

func NewExecutor(chats *chat.Registry, log *logrus.Entry) *Executor {
	return &Executor{chats: chats, log: log}
}

// Messages renders the system and user templates against vars.
func Messages(a *Assistant, vars map[string]any) []chat.Message {
	var msgs []chat.Message
	if sys := strings.TrimSpace(template.Render(a.SystemPrompt, vars)); sys != "" {
		msgs = append(msgs, chat.System(sys))
	}
	return append(msgs, chat.User(template.Render(a.UserMessage, vars)))
}

// Execute runs a against vars. JSON assistants whose reply does not decode
// fail with invalid_output_format.
func (e *Executor) Execute(ctx context.Context, a *Assistant, vars map[string]any, settings config.Settings) (*Output, error) {
	client, err := e.chats.Client(a.Vendor, settings)
	if err != nil {
		return nil, err
	}

	if missing := template.Missing(a.UserMessage, vars); len(missing) > 0 {
		e.log.WithFields(logrus.Fields{
			"assistant": a.Name,
			"missing":   missing,
		}).Debug("template variables not in context")
	}

	vendorCfg, _ := settings.Vendor(a.Vendor)
	model := a.Model
	if model == "" {
		model = vendorCfg.Model
	}

	resp, err := client.ChatCompletion(ctx, Messages(a, vars), chat.Params{
		Model:       model,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
		JSON:        a.WantsJSON(),
	})
	if err != nil {
		return nil, err
	}

	out := &Output{Raw: client.ExtractContent(resp), Response: resp}
	if !a.WantsJSON() {
		return out, nil
	}

	data, err := postprocess.DecodeObject(out.Raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindFormat, err, "assistant %q declared json output", a.Name)
	}
	out.Data = data
	out.Variables = make(map[string]any, len(a.OutputVariables))
	for _, name := range a.OutputVariables {
		if v, ok := template.Lookup(data, name); ok {
			out.Variables[name] = v
		}
	}
	return out, nil
}

// TranslationContext is the variable context of a translation hop.
func TranslationContext(b internal.ContentBundle, source, target string) map[string]any {
	return map[string]any{
		"source_lang": source,
		"target_lang": target,
		"translated":  b.AsMap(),
		"original":    b.AsMap(),
	}
}

// Translate runs a as a translation hop. Only JSON assistants can produce a
// bundle; anything else is invalid_output_format.
func (e *Executor) Translate(ctx context.Context, a *Assistant, b internal.ContentBundle, source, target string, settings config.Settings) (internal.ContentBundle, error) {
	if !a.WantsJSON() {
		return b, errs.Format("assistant %q returns plain text and cannot translate a bundle", a.Name)
	}
	out, err := e.Execute(ctx, a, TranslationContext(b, source, target), settings)
	if err != nil {
		return b, err
	}
	return assistant.DecodeBundle(out.Raw, b)
}
