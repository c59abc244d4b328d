package translator

import (
	"context"
	"sort"
	"strings"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/chunker"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/retry"
)

// TranslateBundle translates every non-empty text field of b and returns a
// new bundle; b is left untouched. The content body is sent as HTML, other
// fields as plain text. Each call gets the provider timeout and one retry on
// transport errors. The first failing field aborts the bundle. Fields longer
// than cfg.MaxChars are sent in pieces.
func TranslateBundle(ctx context.Context, svc TranslationService, cfg ServiceConfig, b internal.ContentBundle, source, target string) (internal.ContentBundle, error) {
	out := b.Clone()
	policy := retry.Policy{Timeout: cfg.Timeout}

	call := func(field, text, format string) (string, error) {
		req := TranslateRequest{Text: text, SourceLang: source, TargetLang: target, Format: format}
		res, err := retry.Do(ctx, policy, func(ctx context.Context) (*ServiceResult, error) {
			return svc.Translate(ctx, cfg, req)
		})
		if err != nil {
			return "", errs.Wrap(errs.KindOf(err), err, "%s: %s failed", field, svc.Name())
		}
		return res.TranslatedText, nil
	}

	tr := func(field, text, format string) (string, error) {
		if text == "" {
			return "", nil
		}
		pieces := chunker.Split(text, cfg.MaxChars)
		if len(pieces) == 1 {
			return call(field, text, format)
		}

		var sb strings.Builder
		for _, p := range pieces {
			lead, core, trail := chunker.Trim(p)
			sb.WriteString(lead)
			if core != "" {
				translated, err := call(field, core, format)
				if err != nil {
					return "", err
				}
				sb.WriteString(translated)
			}
			sb.WriteString(trail)
		}
		return sb.String(), nil
	}

	var err error
	if out.Title, err = tr("title", b.Title, FormatText); err != nil {
		return b, err
	}
	if out.Content, err = tr("content", b.Content, FormatHTML); err != nil {
		return b, err
	}
	if out.Excerpt, err = tr("excerpt", b.Excerpt, FormatText); err != nil {
		return b, err
	}

	keys := make([]string, 0, len(b.Meta))
	for k := range b.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if out.Meta[k], err = tr("meta."+k, b.Meta[k], FormatText); err != nil {
			return b, err
		}
	}

	if img := b.FeaturedImage; img != nil {
		if out.FeaturedImage.Alt, err = tr("featured_image.alt", img.Alt, FormatText); err != nil {
			return b, err
		}
		if out.FeaturedImage.Caption, err = tr("featured_image.caption", img.Caption, FormatText); err != nil {
			return b, err
		}
	}

	return out, nil
}
