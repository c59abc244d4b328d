package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/executor"
	"github.com/valpere/polytran/internal/logging"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/store"
	"github.com/valpere/polytran/internal/translator"
	"github.com/valpere/polytran/internal/validator"
)

type mockService struct {
	nameVal       string
	translateFunc func(req translator.TranslateRequest) (*translator.ServiceResult, error)
	callCount     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) IsConfigured(translator.ServiceConfig) bool { return true }

func (m *mockService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "uk"}, nil
}

func (m *mockService) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.callCount.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(req)
	}
	return &translator.ServiceResult{ServiceName: m.nameVal, TranslatedText: req.Text}, nil
}

// countingRunner counts the hops handed to the real step executor.
type countingRunner struct {
	StepRunner
	calls int
}

func (r *countingRunner) ExecuteStep(ctx context.Context, b internal.ContentBundle, source, target, id string, s config.Settings) executor.StepResult {
	r.calls++
	return r.StepRunner.ExecuteStep(ctx, b, source, target, id, s)
}

type fixture struct {
	exec     *PathExecutor
	runner   *countingRunner
	identity *mockService
	settings config.Settings
}

func newFixture(t *testing.T, log *logrus.Entry, services ...translator.TranslationService) *fixture {
	t.Helper()

	identity := &mockService{nameVal: "identity"}
	providers := translator.NewRegistry(append(services, identity)...)
	repo := managed.NewRepository(store.NewMemory().Settings())
	chats := chat.NewDefaultRegistry()
	factory := assistant.NewDefaultFactory()

	steps := executor.New(providers, repo, managed.NewExecutor(chats, log), factory, log)
	runner := &countingRunner{StepRunner: steps}
	v := validator.NewPathValidator(providers, repo, factory, chats)

	enabled := map[string]bool{}
	for _, name := range providers.Names() {
		enabled[name] = true
	}
	return &fixture{
		exec:     NewPathExecutor(runner, v, log),
		runner:   runner,
		identity: identity,
		settings: config.Settings{EnabledProviders: enabled},
	}
}

var sample = internal.ContentBundle{
	Title:         "Hello world",
	Content:       "<p>This is <strong>content</strong>.</p>",
	Excerpt:       "Short",
	Meta:          map[string]string{"seo_title": "Hello"},
	FeaturedImage: &internal.FeaturedImage{ID: "7", Alt: "a cat"},
}

func TestExecute_RoundTripIdentity(t *testing.T) {
	f := newFixture(t, logging.Discard())

	res := f.exec.Execute(context.Background(), PathRequest{
		Bundle:  sample,
		Source:  "en",
		Target:  "fr",
		Rules:   []resolver.Rule{{Source: "en", Target: "all", Intermediate: "de"}},
		Mapping: map[string]string{"en_to_de": "provider_identity", "de_to_fr": "provider_identity"},
	}, f.settings)

	if !res.Success {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if got := strings.Join(res.Path, ","); got != "en,de,fr" {
		t.Errorf("path = %s, want en,de,fr", got)
	}
	if len(res.Hops) != 2 {
		t.Errorf("hops = %d, want 2", len(res.Hops))
	}
	if !res.Bundle.Equal(sample) {
		t.Errorf("bundle changed: %+v", res.Bundle)
	}
}

func TestExecute_FallbackMapping(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	f := newFixture(t, logrus.NewEntry(logger))

	res := f.exec.Execute(context.Background(), PathRequest{
		Bundle:  sample,
		Source:  "en",
		Target:  "fr",
		Mapping: map[string]string{"de_to_es": "provider_identity", "aa_to_bb": ""},
	}, f.settings)

	if !res.Success {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if !res.Hops[0].Fallback || res.Hops[0].BackendID != "provider_identity" {
		t.Errorf("hop = %+v, want fallback to provider_identity", res.Hops[0])
	}

	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["hop"] == "en_to_fr" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warn log for the fallback hop")
	}
}

func TestExecute_ValidationFailureRunsNothing(t *testing.T) {
	f := newFixture(t, logging.Discard())

	res := f.exec.Execute(context.Background(), PathRequest{
		Bundle:  sample,
		Source:  "pl",
		Target:  "fr",
		Rules:   []resolver.Rule{{Source: "pl", Target: "all", Intermediate: "en"}},
		Mapping: map[string]string{"pl_to_en": "provider_identity", "en_to_fr": "provider_ghost"},
	}, f.settings)

	if res.Success {
		t.Fatal("expected failure")
	}
	if f.runner.calls != 0 {
		t.Errorf("executed %d hops before validation passed", f.runner.calls)
	}
	if res.Validation == nil || res.Validation.Errors["en_to_fr"] == "" {
		t.Fatalf("expected validation error for en_to_fr, got %+v", res.Validation)
	}
	if !strings.Contains(res.Error, "hop en_to_fr") {
		t.Errorf("error %q does not name the hop", res.Error)
	}
}

func TestExecute_AbortsOnFirstFailingHop(t *testing.T) {
	broken := &mockService{nameVal: "broken", translateFunc: func(translator.TranslateRequest) (*translator.ServiceResult, error) {
		return nil, errs.Format("provider returned an empty body")
	}}
	f := newFixture(t, logging.Discard(), broken)

	res := f.exec.Execute(context.Background(), PathRequest{
		Bundle:  sample,
		Source:  "pl",
		Target:  "fr",
		Rules:   []resolver.Rule{{Source: "all", Target: "fr", Intermediate: "en"}},
		Mapping: map[string]string{"pl_to_en": "provider_broken", "en_to_fr": "provider_identity"},
	}, f.settings)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailedHop != "pl_to_en" {
		t.Errorf("failed hop = %q, want pl_to_en", res.FailedHop)
	}
	if res.ErrorKind != errs.KindFormat {
		t.Errorf("error kind = %s, want %s", res.ErrorKind, errs.KindFormat)
	}
	if len(res.Hops) != 1 || f.identity.callCount.Load() != 0 {
		t.Errorf("second hop ran: hops=%d identity calls=%d", len(res.Hops), f.identity.callCount.Load())
	}
	if broken.callCount.Load() != 1 {
		t.Errorf("format errors must not be retried, calls=%d", broken.callCount.Load())
	}
	if res.Bundle != nil {
		t.Error("failed path must not carry a bundle")
	}
}

func TestExecute_RejectsSameLanguage(t *testing.T) {
	f := newFixture(t, logging.Discard())

	res := f.exec.Execute(context.Background(), PathRequest{Bundle: sample, Source: "en", Target: "EN"}, f.settings)
	if res.ErrorKind != errs.KindValidation {
		t.Errorf("error kind = %s, want %s", res.ErrorKind, errs.KindValidation)
	}
}

func TestExecute_OutputLanguageCheck(t *testing.T) {
	f := newFixture(t, logging.Discard())
	f.exec.WithLanguageCheck(validator.NewLanguageChecker())
	f.settings.VerifyOutputLanguage = true

	in := internal.ContentBundle{Title: "t", Content: "<p>This paragraph is clearly written in the English language.</p>"}
	res := f.exec.Execute(context.Background(), PathRequest{
		Bundle:  in,
		Source:  "en",
		Target:  "fr",
		Mapping: map[string]string{"en_to_fr": "provider_identity"},
	}, f.settings)

	if res.Success {
		t.Fatal("identity output is not French and must fail the check")
	}
	if res.ErrorKind != errs.KindFormat || res.FailedHop != "en_to_fr" {
		t.Errorf("got kind=%s hop=%s", res.ErrorKind, res.FailedHop)
	}
}

func TestEffectiveMapping(t *testing.T) {
	mapping, fell := EffectiveMapping(resolver.Path{"pl", "en", "fr"}, map[string]string{
		"pl_to_en": "provider_a",
		"zz_to_yy": "provider_z",
	})
	if mapping["pl_to_en"] != "provider_a" || mapping["en_to_fr"] != "provider_a" {
		t.Errorf("mapping = %v", mapping)
	}
	if len(fell) != 1 || fell[0] != "en_to_fr" {
		t.Errorf("fallback hops = %v", fell)
	}

	mapping, fell = EffectiveMapping(resolver.Path{"pl", "fr"}, map[string]string{"x": " "})
	if len(mapping) != 0 || len(fell) != 0 {
		t.Errorf("empty table must not fall back: %v %v", mapping, fell)
	}
}

func TestCompare(t *testing.T) {
	good := &mockService{nameVal: "good", translateFunc: func(req translator.TranslateRequest) (*translator.ServiceResult, error) {
		return &translator.ServiceResult{ServiceName: "good", TranslatedText: "Привіт"}, nil
	}}
	bad := &mockService{nameVal: "bad", translateFunc: func(translator.TranslateRequest) (*translator.ServiceResult, error) {
		return nil, errors.New("quota exceeded")
	}}
	providers := translator.NewRegistry(good, bad)

	cmp := Compare(context.Background(), providers, []string{"good", "bad", "missing"}, config.Settings{},
		translator.TranslateRequest{Text: "Hello", SourceLang: "en", TargetLang: "uk"})

	if cmp.Succeeded != 1 || cmp.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d", cmp.Succeeded, cmp.Failed)
	}
	if cmp.Results[0].TranslatedText != "Привіт" {
		t.Errorf("result = %+v", cmp.Results[0])
	}
	if !strings.Contains(cmp.Errors["bad"], "quota exceeded") {
		t.Errorf("errors = %v", cmp.Errors)
	}
	if _, ok := cmp.Errors["missing"]; !ok {
		t.Error("unregistered provider should be reported")
	}
}
