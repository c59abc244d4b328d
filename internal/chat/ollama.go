package chat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaClient uses the /api/chat endpoint of a local Ollama server.
type OllamaClient struct {
	cfg    config.VendorConfig
	client *http.Client
}

func NewOllamaClient(cfg config.VendorConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	return &OllamaClient{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

func (c *OllamaClient) ChatCompletion(ctx context.Context, messages []Message, params Params) (*Response, error) {
	model := params.Model
	if model == "" {
		model = c.cfg.Model
	}

	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}

	req := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if len(options) > 0 {
		req["options"] = options
	}
	if params.JSON {
		req["format"] = "json"
	}

	var resp struct {
		Model   string `json:"model"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}

	if err := postJSON(ctx, c.client, fmt.Sprintf("%s/api/chat", c.cfg.BaseURL), nil, req, &resp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.Message.Content == "" {
		return nil, errs.Format("ollama: empty response from model %s", model)
	}

	return &Response{
		Vendor:           "ollama",
		Model:            model,
		Content:          resp.Message.Content,
		FinishReason:     resp.DoneReason,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

func (c *OllamaClient) ExtractContent(resp *Response) string {
	return extractContent(resp)
}
