package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/store"
	"github.com/valpere/polytran/internal/translator"
)

type stubProvider struct {
	name       string
	configured bool
}

func (p stubProvider) Name() string                                         { return p.name }
func (p stubProvider) IsConfigured(translator.ServiceConfig) bool           { return p.configured }
func (p stubProvider) SupportedLanguages(context.Context) ([]string, error) { return nil, nil }
func (p stubProvider) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return &translator.ServiceResult{ServiceName: p.name, TranslatedText: req.Text}, nil
}

func fixture(t *testing.T) (*PathValidator, config.Settings) {
	t.Helper()
	ctx := context.Background()

	repo := managed.NewRepository(store.NewMemory().Settings())
	require.NoError(t, repo.Save(ctx, &managed.Assistant{Name: "active", Vendor: "ollama", UserMessage: "x", ExpectedFormat: managed.FormatJSON, Active: true}))
	require.NoError(t, repo.Save(ctx, &managed.Assistant{Name: "inactive", Vendor: "ollama", UserMessage: "x"}))
	require.NoError(t, repo.Save(ctx, &managed.Assistant{Name: "keyless", Vendor: "openai", UserMessage: "x", Active: true}))

	providers := translator.NewRegistry(
		stubProvider{name: "echo", configured: true},
		stubProvider{name: "nokey", configured: false},
	)

	settings := config.Settings{
		EnabledProviders: map[string]bool{"echo": true, "nokey": true, "ghost": true},
		Vendors: map[string]config.VendorConfig{
			"ollama": {Enabled: true},
			"openai": {Enabled: true},
			"gemini": {Enabled: false, APIKey: "k"},
		},
	}
	return NewPathValidator(providers, repo, assistant.NewDefaultFactory(), chat.NewDefaultRegistry()), settings
}

func TestValidateAssistantID(t *testing.T) {
	v, settings := fixture(t)
	ctx := context.Background()

	tests := []struct {
		id      string
		kind    errs.Kind
		message string
	}{
		{id: "provider_echo"},
		{id: "provider_mymemory", kind: errs.KindConfiguration, message: "not enabled"},
		{id: "provider_ghost", kind: errs.KindConfiguration, message: "not registered"},
		{id: "provider_nokey", kind: errs.KindConfiguration, message: "missing credentials"},
		{id: "managed_1"},
		{id: "managed_2", kind: errs.KindConfiguration, message: "inactive"},
		{id: "managed_3", kind: errs.KindConfiguration, message: "no API key"},
		{id: "managed_9", kind: errs.KindRouting, message: "does not exist"},
		{id: "managed_x", kind: errs.KindRouting, message: "positive integer"},
		{id: "asst_abc", kind: errs.KindConfiguration, message: "no API key"},
		{id: "gemini_tuned", kind: errs.KindConfiguration, message: "not enabled"},
		{id: "claude-thing", kind: errs.KindRouting, message: "cannot determine vendor"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := v.ValidateAssistantID(ctx, tt.id, settings)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidatePath_CollectsAllHops(t *testing.T) {
	v, settings := fixture(t)

	report := v.ValidatePath(context.Background(), resolver.Path{"pl", "en", "fr"}, map[string]string{
		"pl_to_en": "provider_nokey",
		"de_to_es": "provider_echo",
	}, settings)

	assert.False(t, report.Valid)
	assert.Equal(t, []string{"en_to_fr", "pl_to_en"}, report.Hops())
	assert.Contains(t, report.Errors["en_to_fr"], "no backend configured for this hop")
	assert.Contains(t, report.Errors["pl_to_en"], "missing credentials")

	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, errs.KindRouting, errs.KindOf(err))
	assert.Contains(t, err.Error(), "hop en_to_fr")
	assert.Contains(t, err.Error(), "hop pl_to_en")
}

func TestValidatePath_Valid(t *testing.T) {
	v, settings := fixture(t)

	report := v.ValidatePath(context.Background(), resolver.Path{"en", "fr"}, map[string]string{
		"en_to_fr": "managed_1",
	}, settings)

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.NoError(t, report.Err())
}

func TestValidatePath_ValidIffNoHopFails(t *testing.T) {
	v, settings := fixture(t)
	ctx := context.Background()

	langs := []string{"en", "fr", "de", "pl"}
	ids := []string{"", "provider_echo", "provider_nokey", "managed_1", "managed_2", "asst_x", "nonsense"}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 3).Draw(t, "len")
		path := resolver.Path{rapid.SampledFrom(langs).Draw(t, "l0")}
		for len(path) < n {
			next := rapid.SampledFrom(langs).Draw(t, "l")
			if next != path[len(path)-1] {
				path = append(path, next)
			}
		}

		mapping := map[string]string{}
		for _, hop := range path.Hops() {
			mapping[resolver.HopKey(hop[0], hop[1])] = rapid.SampledFrom(ids).Draw(t, "id")
		}

		report := v.ValidatePath(ctx, path, mapping, settings)

		anyBad := false
		for _, hop := range path.Hops() {
			id := mapping[resolver.HopKey(hop[0], hop[1])]
			if strings.TrimSpace(id) == "" || v.ValidateAssistantID(ctx, id, settings) != nil {
				anyBad = true
			}
		}
		if report.Valid == anyBad {
			t.Fatalf("valid=%v but failing hop present=%v (errors %v)", report.Valid, anyBad, report.Errors)
		}
		if report.Valid != (len(report.Errors) == 0) {
			t.Fatalf("valid=%v with %d errors", report.Valid, len(report.Errors))
		}
	})
}
