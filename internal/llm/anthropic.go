package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	client   anthropic.Client
	settings Settings
	logger   *slog.Logger
}

func NewAnthropic(s Settings) (*Anthropic, error) {
	if s.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithRequestTimeout(s.Timeout),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 1024
	}
	return &Anthropic{
		client:   anthropic.NewClient(opts...),
		settings: s,
		logger:   slog.Default().With("component", "llm", "provider", "anthropic", "model", s.Model),
	}, nil
}

func (a *Anthropic) Generate(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.settings.Model),
		MaxTokens:   int64(a.settings.MaxTokens),
		Temperature: anthropic.Float(a.settings.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	a.logger.Debug("generating", "system_len", len(system), "user_len", len(user))
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		a.logger.Error("generation failed", "err", err)
		return "", err
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(v.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
