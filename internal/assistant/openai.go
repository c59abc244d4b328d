package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	openAIPrefix     = "asst_"
)

// IsOpenAIAssistant matches OpenAI Assistants API ids.
func IsOpenAIAssistant(id string) bool {
	return strings.HasPrefix(id, openAIPrefix) && len(id) > len(openAIPrefix)
}

// OpenAIClient runs an assistant on a fresh thread and waits for the run.
type OpenAIClient struct {
	cfg          config.VendorConfig
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewOpenAIClient(cfg config.VendorConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIURL
	}
	return &OpenAIClient{
		cfg:          cfg,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Second,
		maxPolls:     120,
	}
}

func (c *OpenAIClient) Vendor() string { return "openai" }

func (c *OpenAIClient) SupportsAssistantID(id string) bool { return IsOpenAIAssistant(id) }

func (c *OpenAIClient) ExecuteAssistant(ctx context.Context, id string, bundle internal.ContentBundle, source, target string) (internal.ContentBundle, error) {
	reply, err := c.Prompt(ctx, id, TranslationPrompt(bundle, source, target))
	if err != nil {
		return bundle, err
	}
	return DecodeBundle(reply, bundle)
}

type openAIRun struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (c *OpenAIClient) Prompt(ctx context.Context, id, message string) (string, error) {
	var run openAIRun
	err := c.do(ctx, http.MethodPost, "/threads/runs", map[string]any{
		"assistant_id": id,
		"thread": map[string]any{
			"messages": []map[string]string{{"role": "user", "content": message}},
		},
	}, &run)
	if err != nil {
		return "", err
	}

	for i := 0; ; i++ {
		switch run.Status {
		case "completed":
			return c.lastMessage(ctx, run.ThreadID)
		case "failed", "cancelled", "expired", "incomplete":
			msg := run.Status
			if run.LastError != nil {
				msg = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
			}
			return "", errs.New(errs.KindTransport, "openai run %s %s", run.ID, msg)
		case "requires_action":
			return "", errs.Config("openai assistant %s requires tool calls, which are not supported", id)
		}

		if i >= c.maxPolls {
			return "", errs.New(errs.KindTimeout, "openai run %s still %s after %d polls", run.ID, run.Status, c.maxPolls)
		}
		select {
		case <-ctx.Done():
			return "", errs.Transport(ctx.Err(), "openai run %s interrupted", run.ID)
		case <-time.After(c.pollInterval):
		}

		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/threads/%s/runs/%s", run.ThreadID, run.ID), nil, &run); err != nil {
			return "", err
		}
	}
}

func (c *OpenAIClient) lastMessage(ctx context.Context, threadID string) (string, error) {
	var list struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/threads/%s/messages?order=desc&limit=1", threadID), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) == 0 || list.Data[0].Role != "assistant" {
		return "", errs.Format("openai thread %s has no assistant reply", threadID)
	}

	var sb strings.Builder
	for _, part := range list.Data[0].Content {
		if part.Type == "text" {
			sb.WriteString(part.Text.Value)
		}
	}
	return sb.String(), nil
}

func (c *OpenAIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Transport(err, "openai request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.Transport(nil, "openai returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.KindFormat, err, "failed to decode openai response")
	}
	return nil
}
