package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.AppKey = "secret"
	cfg.AI.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 0.8, cfg.AI.Temperature)
	assert.Equal(t, 300, cfg.AI.MaxTokens)
	assert.Equal(t, 15, cfg.Chat.MaxHistory)
	assert.Equal(t, 2000, cfg.Chat.MaxMessageLength)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.SystemPrompt)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 20*time.Second, cfg.AITimeout())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing app key", func(c *Config) { c.Auth.AppKey = "" }, "auth.app_key"},
		{"missing api key", func(c *Config) { c.AI.APIKey = "" }, "ai.api_key"},
		{"bad provider", func(c *Config) { c.AI.Provider = "llama" }, "ai.provider"},
		{"missing model", func(c *Config) { c.AI.Model = "" }, "ai.model"},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"history too small", func(c *Config) { c.Chat.MaxHistory = 1 }, "chat.max_history"},
		{"bad message length", func(c *Config) { c.Chat.MaxMessageLength = 0 }, "chat.max_message_length"},
		{"bad idle timeout", func(c *Config) { c.Session.IdleTimeoutMinutes = 0 }, "idle_timeout"},
		{"bad sweep interval", func(c *Config) { c.Session.SweepIntervalMinutes = 0 }, "sweep_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := validConfig()

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.NotContains(t, s, "sk-test")
	assert.Contains(t, s, "[REDACTED]")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.AI.Provider)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oraculum.json")
	content := `{
  "server": {"port": 8080},
  "auth": {"app_key": "file-key"},
  "ai": {"provider": "anthropic", "model": "claude-3-5-haiku-latest"}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file-key", cfg.Auth.AppKey)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.AI.Model)
	// Untouched sections keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 15, cfg.Chat.MaxHistory)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORACULUM_AUTH_APP_KEY", "env-key")
	t.Setenv("ORACULUM_AI_API_KEY", "env-api-key")
	t.Setenv("ORACULUM_SERVER_PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Auth.AppKey)
	assert.Equal(t, "env-api-key", cfg.AI.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoader_GetConfigPath(t *testing.T) {
	loader := NewLoader("/tmp/custom.json")
	assert.Equal(t, "/tmp/custom.json", loader.GetConfigPath())

	loader = NewLoader("")
	assert.Contains(t, loader.GetConfigPath(), ".oraculum")
}
