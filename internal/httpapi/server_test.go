package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/app"
	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/chat"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/jobs"
	"github.com/valpere/polytran/internal/logging"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/store"
	"github.com/valpere/polytran/internal/translator"
	"github.com/valpere/polytran/internal/workflow"
)

type upperProvider struct{}

func (upperProvider) Name() string                                         { return "upper" }
func (upperProvider) IsConfigured(translator.ServiceConfig) bool           { return true }
func (upperProvider) SupportedLanguages(context.Context) ([]string, error) { return nil, nil }
func (upperProvider) Translate(ctx context.Context, cfg translator.ServiceConfig, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	return &translator.ServiceResult{ServiceName: "upper", TranslatedText: strings.ToUpper(req.Text)}, nil
}

type replyChat struct{}

func (replyChat) ChatCompletion(context.Context, []chat.Message, chat.Params) (*chat.Response, error) {
	return &chat.Response{Content: "Nouveau titre"}, nil
}
func (replyChat) ExtractContent(r *chat.Response) string { return r.Content }

// noopLauncher accepts every job without running it.
type noopLauncher struct{ tokens []string }

func (l *noopLauncher) Name() string    { return "noop" }
func (l *noopLauncher) Available() bool { return true }
func (l *noopLauncher) Launch(ctx context.Context, token string) error {
	l.tokens = append(l.tokens, token)
	return nil
}

func newServer(t *testing.T) (*Server, *app.App, *noopLauncher) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Driver = "memory"
	cfg.Providers.Enabled = []string{"upper"}
	cfg.Vendors = map[string]config.VendorConfig{"fake": {Enabled: true, APIKey: "k"}}
	cfg.Translation.Rules = []resolver.Rule{{Source: "all", Target: "all"}}
	cfg.Translation.Mapping = map[string]string{"en_to_de": "provider_upper"}

	mem := store.NewMemory()
	chats := chat.NewRegistry()
	chats.Register("fake", func(config.VendorConfig) chat.Client { return replyChat{} })
	l := &noopLauncher{}

	a, err := app.New(cfg, app.Options{
		Backend:   &store.Backend{Settings: mem.Settings(), Jobs: mem.Jobs()},
		Providers: translator.NewRegistry(upperProvider{}),
		Chats:     chats,
		Factory:   assistant.NewFactory(),
		Launchers: []jobs.Launcher{l},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Posts.Save(ctx, "1", internal.ContentBundle{Title: "hallo", Content: "welt"}))
	require.NoError(t, a.Workflows.Save(ctx, workflow.Workflow{
		ID:      "retitle",
		Enabled: true,
		Trigger: workflow.TriggerManual,
		Steps: []workflow.Step{{
			ID: "title", Enabled: true, Kind: workflow.KindCustomAssistant, Vendor: "fake",
			UserMessage: "Retitle {{ translated.title }}", ExpectedFormat: managed.FormatText,
			OutputActions: []workflow.OutputAction{{Type: workflow.ActionUpdateTitle}},
		}},
	}))

	return New(a, logging.Discard()), a, l
}

func do(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestTranslation_SyncMode(t *testing.T) {
	s, a, _ := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/translations?sync=1", map[string]any{
		"post_id": "1", "source_lang": "en", "target_lang": "de",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["status"])
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["success"], result["error"])

	de, err := a.Posts.GetTranslation(context.Background(), "1", "de")
	require.NoError(t, err)
	assert.Equal(t, "HALLO", de.Title)

	// the poll endpoint reads the same result
	code, body = do(t, s, http.MethodGet, "/api/v1/translations/"+body["token"].(string), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["status"])
}

func TestTranslation_BackgroundThenLoopback(t *testing.T) {
	s, a, l := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/translations", map[string]any{
		"post_id": "1", "source_lang": "en", "target_lang": "de",
	})
	require.Equal(t, http.StatusAccepted, code, body)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "noop", body["launcher"])
	token := body["token"].(string)
	require.Equal(t, []string{token}, l.tokens)

	_, body = do(t, s, http.MethodGet, "/api/v1/translations/"+token, nil)
	assert.Equal(t, "running", body["status"])

	code, _ = do(t, s, http.MethodPost, "/internal/jobs/"+token, nil)
	assert.Equal(t, http.StatusAccepted, code)

	require.Eventually(t, func() bool {
		res, err := a.Poller.Peek(context.Background(), jobs.TranslateResultKey(token))
		return err == nil && res.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, body = do(t, s, http.MethodGet, "/api/v1/translations/"+token, nil)
	assert.Equal(t, "completed", body["status"])
}

func TestLoopback_ManyJobsAllComplete(t *testing.T) {
	s, a, l := newServer(t)

	const n = 50
	for i := 0; i < n; i++ {
		code, body := do(t, s, http.MethodPost, "/api/v1/translations", map[string]any{
			"post_id": "1", "source_lang": "en", "target_lang": "de",
		})
		require.Equal(t, http.StatusAccepted, code, body)
	}
	require.Len(t, l.tokens, n)

	for _, token := range l.tokens {
		code, body := do(t, s, http.MethodPost, "/internal/jobs/"+token, nil)
		require.Equal(t, http.StatusAccepted, code)
		assert.Equal(t, token, body["token"])
	}

	for _, token := range l.tokens {
		require.Eventually(t, func() bool {
			res, err := a.Poller.Peek(context.Background(), jobs.TranslateResultKey(token))
			return err == nil && res.Status == jobs.StatusCompleted
		}, 5*time.Second, 10*time.Millisecond, "job %s never completed", token)
	}
}

func TestTranslation_InvalidArgs(t *testing.T) {
	s, _, l := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/translations", map[string]any{
		"post_id": "1", "source_lang": "en", "target_lang": "en",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "validation_error", body["error_kind"])
	assert.Empty(t, l.tokens)
}

func TestWorkflowTest_Sync(t *testing.T) {
	s, a, _ := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/workflows/retitle/test?sync=1", map[string]any{"post_id": "1"})
	require.Equal(t, http.StatusOK, code, body)
	result := body["result"].(map[string]any)
	payload := result["payload"].(map[string]any)
	assert.Equal(t, true, payload["test_mode"])
	steps := payload["step_results"].([]any)
	require.Len(t, steps, 1)
	actions := steps[0].(map[string]any)["output_processing"].([]any)
	action := actions[0].(map[string]any)
	assert.Equal(t, "hallo", action["before"])
	assert.Equal(t, "Nouveau titre", action["after"])

	post, err := a.Posts.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "hallo", post.Title, "test runs do not persist")

	_, body = do(t, s, http.MethodGet, "/api/v1/workflows/tests/"+body["token"].(string), nil)
	assert.Equal(t, "completed", body["status"])
}

func TestWorkflowExecution_Sync(t *testing.T) {
	s, a, _ := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/workflows/retitle/execute?sync=1", map[string]any{"post_id": "1"})
	require.Equal(t, http.StatusOK, code, body)
	execID := body["execution_id"].(string)
	assert.NotEmpty(t, execID)

	post, err := a.Posts.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Nouveau titre", post.Title)

	_, body = do(t, s, http.MethodGet, "/api/v1/workflows/executions/"+execID, nil)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, true, body["result"].(map[string]any)["success"])
}

func TestWorkflowExecution_UnknownWorkflowFails(t *testing.T) {
	s, _, _ := newServer(t)

	code, body := do(t, s, http.MethodPost, "/api/v1/workflows/nope/execute?sync=1", map[string]any{"post_id": "1", "execution_id": "e1"})
	require.Equal(t, http.StatusOK, code, body)
	result := body["result"].(map[string]any)
	assert.Equal(t, false, result["success"])
	assert.Contains(t, result["error"], "nope")
	assert.Equal(t, "e1", body["execution_id"])
}

func TestHealth(t *testing.T) {
	s, _, _ := newServer(t)
	code, body := do(t, s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"noop"}, body["launchers"])
}
