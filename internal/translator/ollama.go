package translator

import (
	"context"
	"net/http"
	"time"

	"github.com/valpere/polytran/internal/errs"
)

var DefaultOllamaModels = []string{
	"llama3.2",
	"gemma2:2b",
	"qwen2.5:3b",
	"mistral:7b",
	"phi4:14b",
}

const defaultOllamaURL = "http://localhost:11434"

// OllamaTranslator translates with a local Ollama server. When no model is
// configured one of its models is picked per call.
type OllamaTranslator struct {
	baseURL string
	models  []string
	client  *http.Client
}

func NewOllamaTranslator(baseURL string, models []string) *OllamaTranslator {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if len(models) == 0 {
		models = DefaultOllamaModels
	}
	return &OllamaTranslator{
		baseURL: baseURL,
		models:  models,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OllamaTranslator) Name() string {
	return "ollama"
}

// IsConfigured is always true: Ollama is self-hosted and keyless.
func (s *OllamaTranslator) IsConfigured(cfg ServiceConfig) bool {
	return true
}

func (s *OllamaTranslator) SetModels(models []string) {
	if len(models) > 0 {
		s.models = models
	}
}

func (s *OllamaTranslator) GetModels() []string {
	return s.models
}

func (s *OllamaTranslator) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result, stop := newResult(s.Name())
	defer stop()

	model := pickModel(cfg.Model, s.models, "llama3.2")
	prompt := newLLMPrompt(req)

	ollamaReq := map[string]any{
		"model":  model,
		"system": prompt.System,
		"prompt": prompt.Text,
		"stream": false,
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}

	if err := doJSON(ctx, s.client, http.MethodPost, cfg.endpoint(s.baseURL)+"/api/generate", nil, ollamaReq, &ollamaResp); err != nil {
		return result.fail(err)
	}

	if ollamaResp.Response == "" {
		return result.fail(errs.Format("ollama: empty response from model %s", model))
	}

	result.Metadata = map[string]string{"model": model}
	result.TranslatedText = prompt.finish(ollamaResp.Response, result.Metadata)
	result.Confidence = 0.7

	return result, nil
}

func (s *OllamaTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko", "ar", "uk"}, nil
}
