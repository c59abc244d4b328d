// Package refiner runs the optional second pass over a draft translation:
// a chat model rewrites it for natural target-language style.
package refiner

import (
	"context"
	"fmt"

	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/postprocess"
)

// Refiner polishes drafts with one chat client.
type Refiner struct {
	client chat.Client
	model  string
}

func New(client chat.Client, model string) *Refiner {
	return &Refiner{client: client, model: model}
}

// Refine returns the polished translation. An empty reply keeps the draft.
func (r *Refiner) Refine(ctx context.Context, sourceLang, targetLang, sourceText, draftText string) (string, error) {
	resp, err := r.client.ChatCompletion(ctx,
		[]chat.Message{
			chat.System(fmt.Sprintf("You are an elite %s literary editor and prose stylist.", targetLang)),
			chat.User(buildPrompt(sourceLang, targetLang, sourceText, draftText)),
		},
		chat.Params{Model: r.model})
	if err != nil {
		return "", errs.Transport(err, "refinement request failed")
	}

	refined := postprocess.Clean(r.client.ExtractContent(resp))
	if refined == "" {
		return draftText, nil
	}
	return refined, nil
}

func buildPrompt(sourceLang, targetLang, sourceText, draftText string) string {
	return fmt.Sprintf(`# YOUR TASK: REFINE AND POLISH

You will receive a DRAFT %s translation that needs improvement.
Rewrite it with natural, idiomatic %s style.

ORIGINAL (%s):
%s

DRAFT TRANSLATION (%s):
%s

**Priority:**
1. Natural flow
2. Idiomatic expressions
3. Preserve meaning

**What to Preserve:**
- All factual content and meaning
- Names and proper nouns
- HTML tags and markup, unchanged

If the draft is already good, return it unchanged.

Output ONLY the refined translation in %s. Do not include any explanation.`,
		targetLang, targetLang,
		sourceLang, sourceText,
		targetLang, draftText,
		targetLang,
	)
}
