package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultSystemPrompt seeds every new session. It mirrors the persona of the
// original deployment.
const DefaultSystemPrompt = "You are a mystical tarot advisor. Answer calmly, " +
	"spiritually and with empathy. At most 3-4 sentences."

// Config represents the main Oraculum configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Auth
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// AI provider
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Chat policy
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Session retention
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// AuthConfig holds the inbound shared secret
type AuthConfig struct {
	AppKey string `json:"app_key" mapstructure:"app_key"`
}

// AIConfig holds completion provider configuration
type AIConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" mapstructure:"model"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ChatConfig holds per-request validation and retention policy
type ChatConfig struct {
	SystemPrompt     string `json:"system_prompt" mapstructure:"system_prompt"`
	MaxHistory       int    `json:"max_history" mapstructure:"max_history"`
	MaxMessageLength int    `json:"max_message_length" mapstructure:"max_message_length"`
}

// SessionConfig holds idle eviction policy
type SessionConfig struct {
	IdleTimeoutMinutes   int `json:"idle_timeout_minutes" mapstructure:"idle_timeout_minutes"`
	SweepIntervalMinutes int `json:"sweep_interval_minutes" mapstructure:"sweep_interval_minutes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		AI: AIConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.8,
			MaxTokens:      300,
			TimeoutSeconds: 20,
		},
		Chat: ChatConfig{
			SystemPrompt:     DefaultSystemPrompt,
			MaxHistory:       15,
			MaxMessageLength: 2000,
		},
		Session: SessionConfig{
			IdleTimeoutMinutes:   30,
			SweepIntervalMinutes: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// IdleTimeout returns the session idle threshold as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

// SweepInterval returns the eviction sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalMinutes) * time.Minute
}

// AITimeout returns the completion call timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Auth.AppKey != "" {
		masked.Auth.AppKey = "[REDACTED]"
	}
	if masked.AI.APIKey != "" {
		masked.AI.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid. Missing secrets are fatal:
// the process must refuse to start without them.
func (c *Config) Validate() error {
	if c.Auth.AppKey == "" {
		return fmt.Errorf("auth.app_key is required (set ORACULUM_AUTH_APP_KEY)")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required (set ORACULUM_AI_API_KEY)")
	}

	if c.AI.Provider != "openai" && c.AI.Provider != "anthropic" {
		return fmt.Errorf("invalid ai.provider %s (must be: openai, anthropic)", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	if c.Chat.MaxHistory < 2 {
		return fmt.Errorf("chat.max_history must be at least 2 (system turn plus one)")
	}
	if c.Chat.MaxMessageLength < 1 {
		return fmt.Errorf("chat.max_message_length must be positive")
	}

	if c.Session.IdleTimeoutMinutes < 1 {
		return fmt.Errorf("session.idle_timeout_minutes must be positive")
	}
	if c.Session.SweepIntervalMinutes < 1 {
		return fmt.Errorf("session.sweep_interval_minutes must be positive")
	}

	return nil
}
