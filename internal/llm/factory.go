package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/taskpilot-ai/taskpilot/internal/config"
)

// Provider base URLs for the OpenAI-compatible providers we know about.
// A configured BaseURL always wins.
const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"
)

// NewClient builds the LLM client described by the provider configuration
// and wraps it with retry behaviour. The API key is read from the
// environment variable named by APIKeyEnv.
func NewClient(cfg *config.Config) (Client, error) {
	provider := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cfg.Provider.Name)), "_", "-")

	apiKey := ""
	if env := strings.TrimSpace(cfg.Provider.APIKeyEnv); env != "" {
		apiKey = strings.TrimSpace(os.Getenv(env))
	}

	var (
		client Client
		err    error
	)

	switch provider {
	case "anthropic", "":
		client, err = NewAnthropicClient(apiKey, cfg.Provider.Model)
	case "openai":
		client, err = NewOpenAICompatibleClient(apiKey, baseURLOr(cfg.Provider.BaseURL, openAIBaseURL), cfg.Provider.Model)
	case "groq":
		client, err = NewOpenAICompatibleClient(apiKey, baseURLOr(cfg.Provider.BaseURL, groqBaseURL), cfg.Provider.Model)
	case "ollama":
		client, err = NewOpenAICompatibleClient(apiKey, baseURLOr(cfg.Provider.BaseURL, ollamaBaseURL), cfg.Provider.Model)
	case "openai-compatible":
		client, err = NewOpenAICompatibleClient(apiKey, cfg.Provider.BaseURL, cfg.Provider.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider.Name)
	}
	if err != nil {
		return nil, err
	}

	return NewRetryingClient(client), nil
}

func baseURLOr(configured, fallback string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return fallback
}
