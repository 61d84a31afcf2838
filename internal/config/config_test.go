package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimus/internal/lang"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HF_TOKEN", "OPENAI_API_KEY", "OPTIMUS_LLM_URL", "OPTIMUS_LLM_MODEL", "OPTIMUS_PROXY", "OPTIMUS_REDIS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "optimus.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 6, cfg.LLM.HistoryWindow)
	assert.Equal(t, 200, cfg.LLM.MaxTokens)
	assert.Equal(t, lang.English, cfg.Language())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "optimus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assistant:
  language: hi
llm:
  model: some/model
  temperature: 0.2
speech:
  voices:
    gu: gu+f3
memory:
  backend: redis
  redis_addr: localhost:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, lang.Hindi, cfg.Language())
	assert.Equal(t, "some/model", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 200, cfg.LLM.MaxTokens, "unset keys keep defaults")
	assert.Equal(t, map[lang.Mode]string{lang.Gujarati: "gu+f3"}, cfg.Voices())
	assert.Equal(t, "redis", cfg.Memory.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HF_TOKEN", "hf_secret")
	t.Setenv("OPTIMUS_LLM_MODEL", "env/model")
	t.Setenv("OPTIMUS_PROXY", "127.0.0.1:1080")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hf_secret", cfg.LLM.APIKey)
	assert.Equal(t, "env/model", cfg.LLM.Model)
	assert.Equal(t, "127.0.0.1:1080", cfg.Proxy)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "optimus.yaml")

	cfg := DefaultConfig()
	cfg.Assistant.Language = "gu"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, lang.Gujarati, got.Language())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.LLM.APIKey = "key"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with key", func(*Config) {}, true},
		{"no key", func(c *Config) { c.LLM.APIKey = "" }, false},
		{"bad language", func(c *Config) { c.Assistant.Language = "fr" }, false},
		{"bad voice language", func(c *Config) { c.Speech.Voices = map[string]string{"de": "de"} }, false},
		{"zero tokens", func(c *Config) { c.LLM.MaxTokens = 0 }, false},
		{"hot temperature", func(c *Config) { c.LLM.Temperature = 3 }, false},
		{"redis without addr", func(c *Config) { c.Memory.Backend = "redis" }, false},
		{"unknown backend", func(c *Config) { c.Memory.Backend = "sqlite" }, false},
		{"bad duration", func(c *Config) { c.LLM.Timeout = "soon" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestDurations(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 60*time.Second, c.GetLLMTimeout())
	assert.Equal(t, 5*time.Minute, c.GetCacheTTL())

	c.HUD.Reconnect = "nonsense"
	assert.Equal(t, 3*time.Second, c.GetHUDReconnect())
}
