package translator

import (
	"context"
	"os"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/polytran/internal/errs"
)

type GoogleService struct{}

func NewGoogleService() *GoogleService {
	return &GoogleService{}
}

func (s *GoogleService) Name() string {
	return "google"
}

// IsConfigured accepts an API key, a credentials file, or ambient application
// default credentials.
func (s *GoogleService) IsConfigured(cfg ServiceConfig) bool {
	return cfg.APIKey != "" || cfg.Credentials != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

func (s *GoogleService) clientOptions(cfg ServiceConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Credentials != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	return opts
}

func (s *GoogleService) Translate(ctx context.Context, cfg ServiceConfig, req TranslateRequest) (*ServiceResult, error) {
	result, stop := newResult(s.Name())
	defer stop()

	targetLangTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return result.fail(errs.Wrap(errs.KindValidation, err, "google: invalid target language %q", req.TargetLang))
	}

	client, err := translate.NewClient(ctx, s.clientOptions(cfg)...)
	if err != nil {
		return result.fail(errs.Wrap(errs.KindConfiguration, err, "google: failed to create client"))
	}
	defer client.Close()

	opts := &translate.Options{Format: translate.Text}
	if req.Format == FormatHTML {
		opts.Format = translate.HTML
	}
	if req.SourceLang != "" && req.SourceLang != "auto" {
		if sourceLangTag, err := language.Parse(req.SourceLang); err == nil {
			opts.Source = sourceLangTag
		}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, targetLangTag, opts)
	if err != nil {
		return result.fail(errs.Transport(err, "google: translation failed"))
	}

	if len(translations) == 0 {
		return result.fail(errs.Format("google: no translation returned"))
	}

	result.TranslatedText = translations[0].Text
	result.Confidence = 1.0
	if translations[0].Source != language.Und {
		result.Metadata = map[string]string{"detected_source": translations[0].Source.String()}
	}

	return result, nil
}

func (s *GoogleService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return nil, nil
}
