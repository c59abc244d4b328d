package chat

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIClient talks to OpenAI-compatible chat endpoints through eino.
type OpenAIClient struct {
	cfg config.VendorConfig
}

func NewOpenAIClient(cfg config.VendorConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIURL
	}
	return &OpenAIClient{cfg: cfg}
}

func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []Message, params Params) (*Response, error) {
	model := params.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return nil, errs.Config("openai: no model configured")
	}

	chatConfig := &openai.ChatModelConfig{
		Model:   model,
		APIKey:  c.cfg.APIKey,
		BaseURL: c.cfg.BaseURL,
	}
	if params.Temperature != nil {
		chatConfig.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		chatConfig.MaxTokens = params.MaxTokens
	}
	if params.JSON {
		chatConfig.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	chatModel, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "openai: failed to create chat model")
	}

	resp, err := chatModel.Generate(ctx, toSchema(messages))
	if err != nil {
		return nil, errs.Transport(err, "openai: completion failed")
	}

	out := &Response{Vendor: "openai", Model: model, Content: resp.Content}
	if resp.ResponseMeta != nil {
		out.FinishReason = string(resp.ResponseMeta.FinishReason)
		if resp.ResponseMeta.Usage != nil {
			out.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
			out.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
		}
	}
	return out, nil
}

func (c *OpenAIClient) ExtractContent(resp *Response) string {
	return extractContent(resp)
}

func toSchema(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
