package translator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/valpere/polytran/internal/errs"
)

const myMemoryURL = "https://api.mymemory.translated.net/get"

// MyMemoryService needs no key; an email raises the anonymous daily quota.
type MyMemoryService struct {
	baseURL string
	client  *http.Client
}

func NewMyMemoryService() *MyMemoryService {
	return &MyMemoryService{
		baseURL: myMemoryURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

func (s *MyMemoryService) IsConfigured(cfg ServiceConfig) bool {
	return true
}

func (s *MyMemoryService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result, stop := newResult(s.Name())
	defer stop()

	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}

	q := url.Values{}
	q.Set("q", req.Text)
	q.Set("langpair", fmt.Sprintf("%s|%s", sourceLang, req.TargetLang))
	if cfg.Email != "" {
		q.Set("de", cfg.Email)
	}

	var mymemResp struct {
		ResponseData struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}

	if err := doJSON(ctx, s.client, http.MethodGet, cfg.endpoint(s.baseURL)+"?"+q.Encode(), nil, nil, &mymemResp); err != nil {
		return result.fail(err)
	}

	// the API reports quota and validation failures in the body with HTTP 200
	if mymemResp.ResponseStatus != http.StatusOK {
		return result.fail(errs.Transport(nil, "mymemory: %s (%d)", mymemResp.ResponseDetails, mymemResp.ResponseStatus))
	}

	result.TranslatedText = mymemResp.ResponseData.TranslatedText
	result.Confidence = min(max(mymemResp.ResponseData.Match, 0), 1)

	return result, nil
}

func (s *MyMemoryService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{
		"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh",
		"ar", "nl", "pl", "tr", "sv", "da", "no", "fi", "el", "he",
		"th", "vi", "id", "ms", "cs", "hu", "ro", "uk", "bg", "ca",
	}, nil
}
