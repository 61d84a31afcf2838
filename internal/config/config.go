package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"optimus/internal/lang"
)

// Config holds all Optimus settings.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
	STT       STTConfig       `yaml:"stt"`
	Speech    SpeechConfig    `yaml:"speech"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	HUD       HUDConfig       `yaml:"hud"`
	IPC       IPCConfig       `yaml:"ipc"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`

	// Proxy is an optional SOCKS5 address for all remote calls.
	Proxy string `yaml:"proxy"`
}

type AssistantConfig struct {
	Name     string `yaml:"name"`
	WakeWord string `yaml:"wake_word"`
	Ack      string `yaml:"ack"`
	Language string `yaml:"language"`
}

// LLMConfig configures the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	APIKey        string  `yaml:"api_key"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	HistoryWindow int     `yaml:"history_window"`
	Timeout       string  `yaml:"timeout"`
}

type MemoryConfig struct {
	Backend   string `yaml:"backend"` // file, redis
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Session   string `yaml:"session"`
}

type STTConfig struct {
	Model   string `yaml:"model"`
	Threads int    `yaml:"threads"`
}

type SpeechConfig struct {
	Espeak     string            `yaml:"espeak"`
	Speed      int               `yaml:"speed"`
	Voices     map[string]string `yaml:"voices"`
	Duck       bool              `yaml:"duck"`
	DuckFactor float64           `yaml:"duck_factor"`
}

type YouTubeConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SecretPath  string `yaml:"client_secret"`
	TokenPath   string `yaml:"token"`
	Interactive bool   `yaml:"interactive"`
	CacheTTL    string `yaml:"cache_ttl"`
}

// HUDConfig points at an optional external HUD that renders the status
// feed.
type HUDConfig struct {
	URL       string `yaml:"url"`
	Reconnect string `yaml:"reconnect"`
}

type IPCConfig struct {
	Socket string `yaml:"socket"`
}

type NotifyConfig struct {
	Chime   string `yaml:"chime"`
	Desktop bool   `yaml:"desktop"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Name:     "Optimus",
			WakeWord: "optimus",
			Ack:      "Yes sir?",
			Language: string(lang.Default),
		},
		LLM: LLMConfig{
			BaseURL:       "https://router.huggingface.co/v1",
			Model:         "Qwen/Qwen2.5-72B-Instruct",
			MaxTokens:     200,
			Temperature:   0.7,
			HistoryWindow: 6,
			Timeout:       "60s",
		},
		Memory: MemoryConfig{
			Backend: "file",
			Path:    "optimus_memory.json",
			Session: "default",
		},
		STT: STTConfig{
			Model: "models/ggml-medium.bin",
		},
		Speech: SpeechConfig{
			Espeak:     "espeak-ng",
			Duck:       true,
			DuckFactor: 0.3,
		},
		YouTube: YouTubeConfig{
			Enabled:     true,
			SecretPath:  "client_secret.json",
			TokenPath:   "youtube_token.json",
			Interactive: true,
			CacheTTL:    "5m",
		},
		HUD: HUDConfig{
			Reconnect: "3s",
		},
		IPC: IPCConfig{
			Socket: "/tmp/optimus.sock",
		},
		Notify: NotifyConfig{
			Desktop: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("HF_TOKEN"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("OPTIMUS_LLM_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("OPTIMUS_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("OPTIMUS_PROXY"); addr != "" {
		c.Proxy = addr
	}
	if addr := os.Getenv("OPTIMUS_REDIS"); addr != "" {
		c.Memory.Backend = "redis"
		c.Memory.RedisAddr = addr
	}
}

func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm api key is not set (HF_TOKEN)")
	}
	if c.LLM.Model == "" {
		return errors.New("llm model is not set")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature out of range: %v", c.LLM.Temperature)
	}
	if _, err := lang.Parse(c.Assistant.Language); err != nil {
		return fmt.Errorf("assistant language: %w", err)
	}
	for code := range c.Speech.Voices {
		if _, err := lang.Parse(code); err != nil {
			return fmt.Errorf("speech voices: %w", err)
		}
	}
	switch c.Memory.Backend {
	case "file":
		if c.Memory.Path == "" {
			return errors.New("memory path is not set")
		}
	case "redis":
		if c.Memory.RedisAddr == "" {
			return errors.New("memory redis_addr is not set")
		}
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	for name, d := range map[string]string{
		"llm.timeout":       c.LLM.Timeout,
		"youtube.cache_ttl": c.YouTube.CacheTTL,
		"hud.reconnect":     c.HUD.Reconnect,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Language returns the configured start-up language.
func (c *Config) Language() lang.Mode {
	m, err := lang.Parse(c.Assistant.Language)
	if err != nil {
		return lang.Default
	}
	return m
}

// Voices maps the configured per-language voice overrides.
func (c *Config) Voices() map[lang.Mode]string {
	out := make(map[lang.Mode]string, len(c.Speech.Voices))
	for code, v := range c.Speech.Voices {
		if m, err := lang.Parse(code); err == nil {
			out[m] = v
		}
	}
	return out
}

func (c *Config) GetLLMTimeout() time.Duration {
	return duration(c.LLM.Timeout, 60*time.Second)
}

func (c *Config) GetCacheTTL() time.Duration {
	return duration(c.YouTube.CacheTTL, 5*time.Minute)
}

func (c *Config) GetHUDReconnect() time.Duration {
	return duration(c.HUD.Reconnect, 3*time.Second)
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
