// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	MaxSessions int
	Backend     BackendConfig
	Debate      DebateConfig
}

// BackendConfig configures the upstream model proxy. With no API key the
// server runs against scripted offline backends.
type BackendConfig struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
	GPTModel    string
	ClaudeModel string
	JudgeModel  string
}

// DebateConfig bounds per-round execution.
type DebateConfig struct {
	CallTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	PreviewCap   int
	EventBuffer  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/debates.db"),
		SessionTTL:  time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		MaxSessions: getEnvInt("MAX_SESSIONS", 100),
		Backend: BackendConfig{
			BaseURL:     getEnv("PRYSM_BASE_URL", "https://prysmai.manus.space/api/v1"),
			APIKey:      getEnv("PRYSM_API_KEY", ""),
			HTTPTimeout: time.Duration(getEnvInt("BACKEND_HTTP_TIMEOUT_SECONDS", 120)) * time.Second,
			GPTModel:    getEnv("GPT_MODEL", "gpt-4o-mini"),
			ClaudeModel: getEnv("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
			JudgeModel:  getEnv("JUDGE_MODEL", "claude-sonnet-4-20250514"),
		},
		Debate: DebateConfig{
			CallTimeout:  time.Duration(getEnvInt("CALL_TIMEOUT_SECONDS", 120)) * time.Second,
			MaxRetries:   getEnvInt("CALL_MAX_RETRIES", 2),
			RetryBackoff: time.Duration(getEnvInt("CALL_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
			PreviewCap:   getEnvInt("PREVIEW_CAP", 200),
			EventBuffer:  getEnvInt("EVENT_BUFFER", 64),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("PRYSM_BASE_URL cannot be empty")
	}
	if c.Debate.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT_SECONDS must be > 0")
	}
	if c.Debate.MaxRetries < 0 {
		return fmt.Errorf("CALL_MAX_RETRIES must be >= 0")
	}
	if c.Debate.PreviewCap <= 0 {
		return fmt.Errorf("PREVIEW_CAP must be > 0")
	}
	if c.Debate.EventBuffer <= 0 {
		return fmt.Errorf("EVENT_BUFFER must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// OfflineMode reports whether the server should fall back to scripted
// backends because no proxy API key is configured.
func (c *Config) OfflineMode() bool {
	return c.Backend.APIKey == ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
