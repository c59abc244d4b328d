package translator

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/valpere/polytran/internal/placeholder"
	"github.com/valpere/polytran/internal/postprocess"
)

// llmPrompt is the shielded text and instructions sent to an LLM provider.
type llmPrompt struct {
	System string
	Text   string
	set    *placeholder.Set
}

// newLLMPrompt protects markup in HTML requests and builds the system prompt.
func newLLMPrompt(req TranslateRequest) llmPrompt {
	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "the detected language"
	}

	p := llmPrompt{Text: req.Text}
	if req.Format == FormatHTML {
		p.Text, p.set = placeholder.Protect(req.Text)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s.\n", sourceLang, req.TargetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes, just the translation.")
	if p.set.Len() > 0 {
		sb.WriteString(" ")
		sb.WriteString(placeholder.InstructionHint())
	}
	p.System = sb.String()
	return p
}

// finish cleans the model output and puts protected markup back. Dropped
// markers are reported in metadata rather than failing the call.
func (p llmPrompt) finish(output string, meta map[string]string) string {
	text := postprocess.Clean(output)
	restored, missing := p.set.Restore(text)
	if len(missing) > 0 {
		meta["missing_markers"] = strconv.Itoa(len(missing))
	}
	return restored
}

func pickModel(configured string, models []string, fallback string) string {
	if configured != "" {
		return configured
	}
	if len(models) == 0 {
		return fallback
	}
	return models[rand.Intn(len(models))]
}
