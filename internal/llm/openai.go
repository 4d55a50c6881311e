package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAICompatible talks to any OpenAI-style chat completions endpoint.
type OpenAICompatible struct {
	client   llms.Model
	settings Settings
	logger   *slog.Logger
}

// NewOpenAICompatible creates a client for provider (used only for logs).
func NewOpenAICompatible(provider string, s Settings) (*OpenAICompatible, error) {
	opts := []openai.Option{
		openai.WithToken(s.APIKey),
		openai.WithModel(s.Model),
		openai.WithHTTPClient(&http.Client{Timeout: s.Timeout}),
	}
	if s.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(s.BaseURL, "/")))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAICompatible{
		client:   client,
		settings: s,
		logger:   slog.Default().With("component", "llm", "provider", provider, "model", s.Model),
	}, nil
}

// Generate sends one system + user exchange and returns the reply text.
func (c *OpenAICompatible) Generate(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	opts := []llms.CallOption{llms.WithTemperature(c.settings.Temperature)}
	if c.settings.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.settings.MaxTokens))
	}
	c.logger.Debug("generating", "system_len", len(system), "user_len", len(user))
	resp, err := c.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		c.logger.Error("generation failed", "err", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
