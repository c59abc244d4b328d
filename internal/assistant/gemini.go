package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
)

const (
	defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiPrefix     = "gemini_"
	tunedSegment     = "tunedModels/"
)

// IsGeminiAssistant matches tuned model resource names ("tunedModels/x") and
// "gemini_<model>" shorthands ("gemini_2.0-flash").
func IsGeminiAssistant(id string) bool {
	if strings.HasPrefix(id, geminiPrefix) {
		return len(id) > len(geminiPrefix)
	}
	i := strings.Index(id, tunedSegment)
	return i >= 0 && len(id) > i+len(tunedSegment)
}

// modelResource maps an assistant id to the generateContent resource name.
func modelResource(id string) string {
	if strings.HasPrefix(id, geminiPrefix) {
		return "models/gemini-" + strings.TrimPrefix(id, geminiPrefix)
	}
	return id[strings.Index(id, tunedSegment):]
}

type GeminiClient struct {
	cfg    config.VendorConfig
	client *http.Client
}

func NewGeminiClient(cfg config.VendorConfig) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiURL
	}
	return &GeminiClient{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}
}

func (c *GeminiClient) Vendor() string { return "gemini" }

func (c *GeminiClient) SupportsAssistantID(id string) bool { return IsGeminiAssistant(id) }

func (c *GeminiClient) ExecuteAssistant(ctx context.Context, id string, bundle internal.ContentBundle, source, target string) (internal.ContentBundle, error) {
	reply, err := c.generate(ctx, id, TranslationPrompt(bundle, source, target), true)
	if err != nil {
		return bundle, err
	}
	return DecodeBundle(reply, bundle)
}

func (c *GeminiClient) Prompt(ctx context.Context, id, message string) (string, error) {
	return c.generate(ctx, id, message, false)
}

func (c *GeminiClient) generate(ctx context.Context, id, text string, wantJSON bool) (string, error) {
	body := map[string]any{
		"contents": []map[string]any{{
			"role":  "user",
			"parts": []map[string]string{{"text": text}},
		}},
	}
	if wantJSON {
		body["generationConfig"] = map[string]string{"responseMimeType": "application/json"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.BaseURL, modelResource(id), url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errs.Transport(err, "gemini request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errs.Transport(nil, "gemini returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errs.Wrap(errs.KindFormat, err, "failed to decode gemini response")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errs.Format("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
