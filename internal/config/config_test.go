package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log:
  level: debug
providers:
  enabled: [Google, " systran "]
  services:
    systran:
      api_key: sys-key
vendors:
  openai:
    enabled: true
    api_key: sk-test
    timeout: 15s
  ollama:
    enabled: true
translation:
  request_timeout: 45s
  rules:
    - source: pl
      target: all
      intermediate: en
  mapping:
    pl_to_en: provider_google
    en_to_fr: asst_abc123
jobs:
  poll_attempts: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polytran.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"google", "systran"}, cfg.Providers.Enabled)
	assert.Equal(t, "sys-key", cfg.Providers.Services["systran"].APIKey)
	assert.Equal(t, 45*time.Second, cfg.Translation.RequestTimeout)
	require.Len(t, cfg.Translation.Rules, 1)
	assert.Equal(t, "en", cfg.Translation.Rules[0].Intermediate)
	assert.Equal(t, "asst_abc123", cfg.Translation.Mapping["en_to_fr"])
	assert.Equal(t, 5, cfg.Jobs.PollAttempts)

	// defaults survive a partial file
	assert.Equal(t, time.Hour, cfg.Jobs.TTL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	s := cfg.Settings()
	assert.True(t, s.ProviderEnabled("google"))
	assert.False(t, s.ProviderEnabled("mymemory"))

	// provider without its own timeout inherits the request timeout
	assert.Equal(t, 45*time.Second, s.ServiceConfig("systran").Timeout)

	v, enabled := s.Vendor("openai")
	assert.True(t, enabled)
	assert.Equal(t, 15*time.Second, v.Timeout)

	_, enabled = s.Vendor("gemini")
	assert.False(t, enabled)
}

func TestRequiresAPIKey(t *testing.T) {
	assert.True(t, RequiresAPIKey("openai"))
	assert.True(t, RequiresAPIKey("gemini"))
	assert.False(t, RequiresAPIKey("ollama"))
}
