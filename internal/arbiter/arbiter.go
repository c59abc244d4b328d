// Package arbiter asks a chat model to pick, or compose, the best of several
// provider translations of the same text.
package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/postprocess"
	"github.com/valpere/polytran/internal/translator"
)

// Composite is the selection reported when the model wrote its own text.
const Composite = "composite"

type EvaluationResult struct {
	SelectedService string `json:"selected_service"`
	FinalText       string `json:"final_text"`
	IsComposite     bool   `json:"is_composite"`
	Reasoning       string `json:"reasoning"`
}

// Arbiter evaluates candidate translations with one chat client.
type Arbiter struct {
	client chat.Client
	model  string
}

func New(client chat.Client, model string) *Arbiter {
	return &Arbiter{client: client, model: model}
}

// Evaluate returns the chosen translation. A single candidate is returned
// without asking the model.
func (a *Arbiter) Evaluate(ctx context.Context, source, sourceLang, targetLang string, results []translator.ServiceResult) (*EvaluationResult, error) {
	if len(results) == 0 {
		return nil, errs.New(errs.KindValidation, "no results to evaluate")
	}
	if len(results) == 1 {
		return &EvaluationResult{
			SelectedService: results[0].ServiceName,
			FinalText:       results[0].TranslatedText,
			Reasoning:       "only one service available",
		}, nil
	}

	resp, err := a.client.ChatCompletion(ctx,
		[]chat.Message{chat.User(buildPrompt(source, sourceLang, targetLang, results))},
		chat.Params{Model: a.model, JSON: true})
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "arbiter request failed")
	}

	return parseResponse(a.client.ExtractContent(resp), results)
}

func buildPrompt(source, sourceLang, targetLang string, results []translator.ServiceResult) string {
	var sb strings.Builder
	sb.WriteString("You are a professional translation evaluator.\n")
	fmt.Fprintf(&sb, "Given the original text in %s:\n%q\n\n", sourceLang, source)
	fmt.Fprintf(&sb, "And these translations to %s:\n", targetLang)

	names := make([]string, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "  %d. [%s]: %q\n", i+1, r.ServiceName, r.TranslatedText)
		names = append(names, r.ServiceName)
	}

	fmt.Fprintf(&sb, `Select the best translation or compose an improved one from the available options.
Respond ONLY in JSON:
{
  "selected_service": "%s|%s",
  "final_text": "...",
  "reasoning": "..."
}
`, strings.Join(names, "|"), Composite)
	return sb.String()
}

func parseResponse(text string, results []translator.ServiceResult) (*EvaluationResult, error) {
	obj, err := postprocess.DecodeObject(text)
	if err != nil {
		return nil, errs.Wrap(errs.KindFormat, err, "arbiter reply is not JSON")
	}

	res := &EvaluationResult{}
	res.SelectedService, _ = obj["selected_service"].(string)
	res.FinalText, _ = obj["final_text"].(string)
	res.Reasoning, _ = obj["reasoning"].(string)
	res.IsComposite = res.SelectedService == Composite

	// a named pick without text means the candidate verbatim
	if res.FinalText == "" && !res.IsComposite {
		for _, r := range results {
			if r.ServiceName == res.SelectedService {
				res.FinalText = r.TranslatedText
				break
			}
		}
	}
	if res.FinalText == "" {
		return nil, errs.New(errs.KindFormat, "arbiter selected %q without a usable text", res.SelectedService)
	}
	return res, nil
}
