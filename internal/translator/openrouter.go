package translator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/polytran/internal/errs"
)

var DefaultOpenRouterModels = []string{
	"google/gemini-2.0-flash-exp:free",
	"qwen/qwen2.5-72b-instruct:free",
	"mistralai/mistral-nemo:free",
	"meta-llama/llama-3.1-8b-instruct:free",
}

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

type OpenRouterService struct {
	baseURL string
	models  []string
	client  *http.Client
}

func NewOpenRouterService(baseURL string, models []string) *OpenRouterService {
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	if len(models) == 0 {
		models = DefaultOpenRouterModels
	}
	return &OpenRouterService{
		baseURL: baseURL,
		models:  models,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OpenRouterService) Name() string {
	return "openrouter"
}

func (s *OpenRouterService) IsConfigured(cfg ServiceConfig) bool {
	return cfg.APIKey != ""
}

func (s *OpenRouterService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result, stop := newResult(s.Name())
	defer stop()

	if !s.IsConfigured(cfg) {
		return result.fail(errs.Config("openrouter: api_key is required"))
	}

	model := pickModel(cfg.Model, s.models, DefaultOpenRouterModels[0])
	prompt := newLLMPrompt(req)

	openrouterReq := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": prompt.Text},
		},
		"max_tokens": 4096,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
		"HTTP-Referer":  "https://polytran.local",
		"X-Title":       "PolyTran",
	}

	var openrouterResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := doJSON(ctx, s.client, http.MethodPost, cfg.endpoint(s.baseURL)+"/chat/completions", headers, openrouterReq, &openrouterResp); err != nil {
		return result.fail(err)
	}

	if len(openrouterResp.Choices) == 0 {
		return result.fail(errs.Format("openrouter: no choices in response from %s", model))
	}

	result.Metadata = map[string]string{
		"model":             model,
		"prompt_tokens":     fmt.Sprintf("%d", openrouterResp.Usage.PromptTokens),
		"completion_tokens": fmt.Sprintf("%d", openrouterResp.Usage.CompletionTokens),
	}
	result.TranslatedText = prompt.finish(openrouterResp.Choices[0].Message.Content, result.Metadata)
	result.Confidence = 0.7

	return result, nil
}

func (s *OpenRouterService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko", "ar", "uk"}, nil
}

func (s *OpenRouterService) GetModels() []string {
	return s.models
}
