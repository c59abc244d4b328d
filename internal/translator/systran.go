package translator

import (
	"context"
	"net/http"
	"time"

	"github.com/valpere/polytran/internal/errs"
)

const (
	systranHost = "api-systran-systran-translation-v1.p.rapidapi.com"
	systranURL  = "https://" + systranHost + "/translation/text/translate"
)

type SystranService struct {
	baseURL string
	client  *http.Client
}

func NewSystranService() *SystranService {
	return &SystranService{
		baseURL: systranURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SystranService) Name() string {
	return "systran"
}

func (s *SystranService) IsConfigured(cfg ServiceConfig) bool {
	return cfg.APIKey != ""
}

func (s *SystranService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result, stop := newResult(s.Name())
	defer stop()

	if !s.IsConfigured(cfg) {
		return result.fail(errs.Config("systran: api_key is required"))
	}

	format := req.Format
	if format == "" {
		format = FormatText
	}

	systranReq := map[string]any{
		"text":   []string{req.Text},
		"source": req.SourceLang,
		"target": req.TargetLang,
		"format": format,
	}
	headers := map[string]string{
		"X-RapidAPI-Key":  cfg.APIKey,
		"X-RapidAPI-Host": systranHost,
	}

	var systranResp struct {
		Outputs []struct {
			Output string `json:"output"`
		} `json:"outputs"`
	}

	if err := doJSON(ctx, s.client, http.MethodPost, cfg.endpoint(s.baseURL), headers, systranReq, &systranResp); err != nil {
		return result.fail(err)
	}

	if len(systranResp.Outputs) == 0 || systranResp.Outputs[0].Output == "" {
		return result.fail(errs.Format("systran: empty translation response"))
	}

	result.TranslatedText = systranResp.Outputs[0].Output
	result.Confidence = 1.0
	result.Metadata = map[string]string{"format": format}

	return result, nil
}

func (s *SystranService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "fr", "es", "de", "it", "pt", "ru", "zh", "ja", "ko", "ar"}, nil
}
