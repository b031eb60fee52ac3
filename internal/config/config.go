package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/consts"
)

// ProviderConfig holds the reasoning-model provider settings
type ProviderConfig struct {
	// Name selects the client implementation: "anthropic" or "openai_compatible"
	Name string `json:"name"`
	// Model is the model identifier passed to the provider
	Model string `json:"model"`
	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `json:"api_key_env,omitempty"`
	// BaseURL is the API root for openai_compatible providers
	BaseURL string `json:"base_url,omitempty"`
}

// Config represents application configuration
type Config struct {
	ListenAddr         string         `json:"listen_addr"`
	DatabasePath       string         `json:"database_path"`
	LogLevel           string         `json:"log_level"` // debug, info, warn, error, none
	LogPath            string         `json:"log_path,omitempty"`
	Provider           ProviderConfig `json:"provider"`
	Temperature        float64        `json:"temperature"`
	MaxTokens          int            `json:"max_tokens,omitempty"`
	LLMTimeoutSeconds  int            `json:"llm_timeout_seconds"`
	ToolTimeoutSeconds int            `json:"tool_timeout_seconds"`
	HistoryLimit       int            `json:"history_limit"`
	SessionIdleMinutes int            `json:"session_idle_minutes"`
	MaxToolIterations  int            `json:"max_tool_iterations"`
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "taskpilot")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "taskpilot")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "taskpilot")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "taskpilot")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "taskpilot")
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		ListenAddr:   "localhost:8080",
		DatabasePath: filepath.Join(stateDir, "tasks.db"),
		LogLevel:     "info",
		LogPath:      filepath.Join(stateDir, "taskpilot.log"),
		Provider: ProviderConfig{
			Name:      "anthropic",
			Model:     "claude-3-5-sonnet-20241022",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Temperature:        consts.DefaultTemperature,
		MaxTokens:          consts.DefaultMaxTokens,
		LLMTimeoutSeconds:  int(consts.Timeout60Seconds / time.Second),
		ToolTimeoutSeconds: int(consts.Timeout10Seconds / time.Second),
		HistoryLimit:       consts.DefaultHistoryLimit,
		SessionIdleMinutes: int(consts.DefaultSessionIdleTimeout / time.Minute),
		MaxToolIterations:  consts.DefaultMaxToolIterations,
	}
}

// GetConfigPath returns the platform-specific configuration file path
func GetConfigPath() string {
	switch runtime.GOOS {
	case "linux":
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, "taskpilot", "config.json")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "taskpilot", "config.json")
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "taskpilot", "config.json")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "taskpilot", "config.json")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "taskpilot", "config.json")
	}
}

// Load reads configuration from the given path, filling in defaults for
// anything unset. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = consts.DefaultHistoryLimit
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = consts.DefaultMaxToolIterations
	}
	if cfg.SessionIdleMinutes <= 0 {
		cfg.SessionIdleMinutes = int(consts.DefaultSessionIdleTimeout / time.Minute)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets TASKPILOT_* environment variables win over file values
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_DB_PATH")); v != "" {
		cfg.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_LOG_PATH")); v != "" {
		cfg.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_PROVIDER")); v != "" {
		cfg.Provider.Name = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKPILOT_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
}

// Save writes the configuration to the given path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LLMTimeout returns the reasoning-call timeout as a duration
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return consts.Timeout60Seconds
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// ToolTimeout returns the tool-execution timeout as a duration
func (c *Config) ToolTimeout() time.Duration {
	if c.ToolTimeoutSeconds <= 0 {
		return consts.Timeout10Seconds
	}
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// SessionIdleTimeout returns the session eviction window as a duration
func (c *Config) SessionIdleTimeout() time.Duration {
	if c.SessionIdleMinutes <= 0 {
		return consts.DefaultSessionIdleTimeout
	}
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}
