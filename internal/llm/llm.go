// Package llm adapts chat model providers to domain.ChatModel.
//
// OpenAI and Groq share the OpenAI-compatible client from langchaingo and
// differ only in base URL and key; Anthropic uses its own SDK.
package llm

import (
	"errors"
	"fmt"
	"time"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

// ErrUnknownProvider is returned for a provider name New does not know.
var ErrUnknownProvider = errors.New("unsupported LLM provider")

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("model returned no content")

// Settings are the per-call generation options of a provider.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
}

func settingsFrom(m config.ModelConfig) (Settings, error) {
	key, err := config.APIKey(m.APIKeyEnv)
	if err != nil {
		return Settings{}, err
	}
	timeout := time.Duration(m.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return Settings{
		Model:       m.ModelName,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		BaseURL:     m.BaseURL,
		APIKey:      key,
		Timeout:     timeout,
	}, nil
}

// New returns the chat model of the configured provider.
func New(cfg config.LLMConfig) (domain.ChatModel, error) {
	m, ok := cfg.Models[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	s, err := settingsFrom(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, err)
	}
	switch cfg.Provider {
	case "openai", "groq":
		return NewOpenAICompatible(cfg.Provider, s)
	case "anthropic":
		return NewAnthropic(s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
