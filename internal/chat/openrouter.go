package chat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

type OpenRouterClient struct {
	cfg    config.VendorConfig
	client *http.Client
}

func NewOpenRouterClient(cfg config.VendorConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterURL
	}
	return &OpenRouterClient{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

func (c *OpenRouterClient) ChatCompletion(ctx context.Context, messages []Message, params Params) (*Response, error) {
	model := params.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return nil, errs.Config("openrouter: no model configured")
	}

	req := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if params.Temperature != nil {
		req["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		req["max_tokens"] = *params.MaxTokens
	}
	if params.JSON {
		req["response_format"] = map[string]string{"type": "json_object"}
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  "https://polytran.local",
		"X-Title":       "PolyTran",
	}

	var resp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := postJSON(ctx, c.client, fmt.Sprintf("%s/chat/completions", c.cfg.BaseURL), headers, req, &resp); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errs.Format("openrouter: empty response from API")
	}

	return &Response{
		Vendor:           "openrouter",
		Model:            model,
		Content:          resp.Choices[0].Message.Content,
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *OpenRouterClient) ExtractContent(resp *Response) string {
	return extractContent(resp)
}
