// Package translator holds the raw translation providers and the registry
// that the step executor looks them up in.
package translator

import (
	"context"
	"time"
)

// Text formats understood by providers.
const (
	FormatText = "text"
	FormatHTML = "html"
)

// ServiceConfig is the per-provider configuration from polytran.yaml.
type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	Email       string        `mapstructure:"email" json:"email"`
	MaxChars    int           `mapstructure:"max_chars" json:"max_chars"` // split longer fields; 0 sends them whole
}

// TranslateRequest is one text fragment to translate.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Format     string `json:"format,omitempty"` // FormatText (default) or FormatHTML
}

type ServiceResult struct {
	ServiceName    string            `json:"service_name"`
	TranslatedText string            `json:"translated_text"`
	Confidence     float64           `json:"confidence"`
	Metadata       map[string]string `json:"metadata"`
	Latency        time.Duration     `json:"latency"`
	Error          string            `json:"error,omitempty"`
}

// endpoint returns the configured base URL, or def when none is set.
func (c ServiceConfig) endpoint(def string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return def
}

// newResult opens a result for service. Calling stop records the latency.
func newResult(service string) (result *ServiceResult, stop func()) {
	result = &ServiceResult{ServiceName: service}
	start := time.Now()
	return result, func() { result.Latency = time.Since(start) }
}

// fail records err on the result and returns both.
func (r *ServiceResult) fail(err error) (*ServiceResult, error) {
	r.Error = err.Error()
	return r, err
}

// TranslationService is a raw translation provider.
type TranslationService interface {
	Name() string
	Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error)
	// IsConfigured reports whether cfg carries what the provider needs to run,
	// without making a network call.
	IsConfigured(cfg ServiceConfig) bool
	SupportedLanguages(ctx context.Context) ([]string, error)
}
