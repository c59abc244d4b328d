package workflow

import (
	"context"
	"strings"

	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/markdown"
	"github.com/valpere/polytran/internal/template"
)

// ActionResult records what an output action did, or would do in test mode.
type ActionResult struct {
	Type    ActionType `json:"type"`
	Target  string     `json:"target,omitempty"`
	Applied bool       `json:"applied"`
	Before  string     `json:"before"`
	After   string     `json:"after"`
	Error   string     `json:"error,omitempty"`
}

// applyActions runs the step's actions in order against the working bundle.
// The first failing action fails the step; earlier changes are kept.
func (e *Engine) applyActions(ctx context.Context, step *Step, r *run, raw string, testMode bool) ([]ActionResult, error) {
	var results []ActionResult
	for _, a := range step.OutputActions {
		ar := ActionResult{Type: a.Type, Target: a.Target, Applied: !testMode}

		value, err := actionValue(a, r.vars, raw)
		if err == nil {
			err = apply(a, r, value, &ar)
		}
		if err != nil {
			ar.Applied = false
			ar.Error = err.Error()
			results = append(results, ar)
			return results, err
		}
		results = append(results, ar)
	}
	return results, nil
}

func actionValue(a OutputAction, vars map[string]any, raw string) (string, error) {
	if a.SourceVariable == "" {
		return raw, nil
	}
	v, ok := template.Lookup(vars, a.SourceVariable)
	if !ok {
		return "", errs.New(errs.KindValidation, "output action %s: variable %q not in context", a.Type, a.SourceVariable)
	}
	return template.Stringify(v), nil
}

func apply(a OutputAction, r *run, value string, ar *ActionResult) error {
	b := &r.bundle
	switch a.Type {
	case ActionUpdateTitle:
		ar.Before, b.Title = b.Title, value
		ar.After = b.Title
	case ActionUpdateContent:
		ar.Before, b.Content = b.Content, value
		ar.After = b.Content
	case ActionUpdateExcerpt:
		ar.Before, b.Excerpt = b.Excerpt, value
		ar.After = b.Excerpt
	case ActionAppendContent:
		ar.Before, b.Content = b.Content, joinContent(b.Content, value)
		ar.After = b.Content
	case ActionPrependContent:
		ar.Before, b.Content = b.Content, joinContent(value, b.Content)
		ar.After = b.Content
	case ActionUpdateContentMarkdown:
		ar.Before, b.Content = b.Content, markdown.ToHTML(value)
		ar.After = b.Content
	case ActionUpdateMeta:
		if a.Target == "" {
			return errs.New(errs.KindValidation, "update_post_meta needs a target meta key")
		}
		if b.Meta == nil {
			b.Meta = map[string]string{}
		}
		ar.Before, b.Meta[a.Target] = b.Meta[a.Target], value
		ar.After = value
	case ActionSaveSetting:
		if a.Target == "" {
			return errs.New(errs.KindValidation, "save_setting needs a target key")
		}
		ar.Before = r.pending[a.Target]
		r.pending[a.Target] = value
		ar.After = value
		return nil
	default:
		return errs.New(errs.KindValidation, "unknown output action %q", a.Type)
	}
	r.changed = true
	// later steps read the working bundle; "post" keeps the input
	r.vars["translated"] = r.bundle.AsMap()
	return nil
}

func joinContent(first, second string) string {
	switch {
	case strings.TrimSpace(first) == "":
		return second
	case strings.TrimSpace(second) == "":
		return first
	}
	return first + "\n\n" + second
}

// persist writes the working bundle and pending settings. It is skipped in
// test mode.
func (e *Engine) persist(ctx context.Context, r *run, t Target) error {
	if e.settings != nil {
		for key, value := range r.pending {
			if err := e.settings.Set(ctx, key, []byte(value)); err != nil {
				return errs.Wrap(errs.KindTransport, err, "save setting %s", key)
			}
		}
	}
	if !r.changed || t.PostID == "" || e.posts == nil {
		return nil
	}

	var err error
	if t.Language != "" {
		err = e.posts.SaveTranslation(ctx, t.PostID, t.Language, r.bundle)
	} else {
		err = e.posts.Save(ctx, t.PostID, r.bundle)
	}
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "save post %s", t.PostID)
	}
	return nil
}
