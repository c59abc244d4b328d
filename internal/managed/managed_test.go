package managed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/logging"
	"github.com/valpere/polytran/internal/store"
)

// scriptedClient answers every completion with reply and records the call.
type scriptedClient struct {
	reply    string
	messages []chat.Message
	params   chat.Params
}

func (c *scriptedClient) ChatCompletion(ctx context.Context, messages []chat.Message, params chat.Params) (*chat.Response, error) {
	c.messages, c.params = messages, params
	return &chat.Response{Vendor: "fake", Content: c.reply}, nil
}

func (c *scriptedClient) ExtractContent(resp *chat.Response) string { return resp.Content }

func newExecutor(c *scriptedClient) (*Executor, config.Settings) {
	reg := chat.NewRegistry()
	reg.Register("fake", func(config.VendorConfig) chat.Client { return c })
	settings := config.Settings{Vendors: map[string]config.VendorConfig{
		"fake": {Enabled: true, APIKey: "k", Model: "fake-1"},
	}}
	return NewExecutor(reg, logging.Discard()), settings
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemory().Settings())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	a := &Assistant{Name: "seo", Vendor: "openai", UserMessage: "{{ translated.title }}", ExpectedFormat: "JSON", Active: true}
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, FormatJSON, a.ExpectedFormat)

	b := &Assistant{Name: "tone", Vendor: "ollama", UserMessage: "x"}
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, FormatText, b.ExpectedFormat)

	a.Active = false
	require.NoError(t, repo.Save(ctx, a))
	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, repo.Delete(ctx, 1))
	_, err = repo.Get(ctx, 1)
	assert.True(t, errors.Is(err, errs.ErrAssistantNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, 1), errs.ErrAssistantNotFound))

	err = repo.Save(ctx, &Assistant{Name: "bad", Vendor: "x", UserMessage: "y", ExpectedFormat: "xml"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestExecutor_RendersTemplates(t *testing.T) {
	c := &scriptedClient{reply: `{"seo_title":"Bonjour","tags":["a"]}`}
	e, settings := newExecutor(c)

	temp := float32(0.1)
	a := &Assistant{
		Name:            "seo",
		Vendor:          "fake",
		SystemPrompt:    "You write {{ target_lang }} SEO.",
		UserMessage:     "Title: {{ translated.title }}",
		ExpectedFormat:  FormatJSON,
		OutputVariables: []string{"seo_title", "missing"},
		Temperature:     &temp,
	}
	vars := TranslationContext(internal.ContentBundle{Title: "Hello"}, "en", "fr")

	out, err := e.Execute(context.Background(), a, vars, settings)
	require.NoError(t, err)

	require.Len(t, c.messages, 2)
	assert.Equal(t, "You write fr SEO.", c.messages[0].Content)
	assert.Equal(t, "Title: Hello", c.messages[1].Content)
	assert.True(t, c.params.JSON)
	assert.Equal(t, "fake-1", c.params.Model)
	assert.Equal(t, map[string]any{"seo_title": "Bonjour"}, out.Variables)
}

func TestExecutor_JSONDecodeFailure(t *testing.T) {
	e, settings := newExecutor(&scriptedClient{reply: "not json at all"})
	a := &Assistant{Name: "seo", Vendor: "fake", UserMessage: "x", ExpectedFormat: FormatJSON}

	_, err := e.Execute(context.Background(), a, nil, settings)
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))
}

func TestExecutor_Translate(t *testing.T) {
	c := &scriptedClient{reply: "```json\n{\"title\":\"Bonjour\",\"content\":\"<p>Monde</p>\"}\n```"}
	e, settings := newExecutor(c)
	a := &Assistant{Name: "tr", Vendor: "fake", UserMessage: "{{ translated.content }}", ExpectedFormat: FormatJSON}

	in := internal.ContentBundle{Title: "Hello", Content: "<p>World</p>", Excerpt: "keep"}
	out, err := e.Translate(context.Background(), a, in, "en", "fr", settings)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out.Title)
	assert.Equal(t, "<p>Monde</p>", out.Content)
	assert.Equal(t, "keep", out.Excerpt)
	assert.Equal(t, "Hello", in.Title, "input bundle untouched")
}

func TestExecutor_TranslatePlainTextAssistant(t *testing.T) {
	e, settings := newExecutor(&scriptedClient{reply: "Bonjour"})
	a := &Assistant{Name: "tr", Vendor: "fake", UserMessage: "x", ExpectedFormat: FormatText}

	_, err := e.Translate(context.Background(), a, internal.ContentBundle{Title: "Hello"}, "en", "fr", settings)
	assert.Equal(t, errs.KindFormat, errs.KindOf(err))
}

func TestExecutor_DisabledVendor(t *testing.T) {
	e, settings := newExecutor(&scriptedClient{})
	settings.Vendors["fake"] = config.VendorConfig{Enabled: false}
	a := &Assistant{Name: "tr", Vendor: "fake", UserMessage: "x"}

	_, err := e.Execute(context.Background(), a, nil, settings)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}
