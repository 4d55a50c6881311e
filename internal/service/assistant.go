package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/prompts"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

// ErrorMessage is the assistant turn recorded when a query fails.
const ErrorMessage = "I apologize, but something went wrong. Please try again later."

// ErrEmptyQuery is returned for blank questions; memory is left untouched.
var ErrEmptyQuery = errors.New("empty query")

// Options are the retrieval and prompt settings of an Assistant.
type Options struct {
	K                   int
	ScoreThreshold      float64
	CitationLabel       string
	TranslationLanguage string
	ContextMessages     int
	SystemPrompt        string
}

// OptionsFrom reads the assistant settings out of the application config.
func OptionsFrom(cfg *config.AppConfig) Options {
	return Options{
		K:                   cfg.Retrieval.K,
		ScoreThreshold:      cfg.Retrieval.ScoreThreshold,
		CitationLabel:       cfg.Retrieval.CitationLabel,
		TranslationLanguage: cfg.Assistant.TranslationLanguage,
		ContextMessages:     cfg.Assistant.ContextMessages,
		SystemPrompt:        cfg.SystemPrompt,
	}
}

// Turn is the outcome of one user question.
type Turn struct {
	Memory  *domain.Memory
	Answer  string
	Phrases []string
	Sources []domain.Match
	// Contextual is set when the answer came from memory alone.
	Contextual bool
}

// Assistant answers statute questions from retrieved sections.
type Assistant struct {
	model          domain.ChatModel
	embedder       domain.Embedder
	store          domain.VectorStore
	opts           Options
	searchPrompt   prompts.PromptTemplate
	responsePrompt prompts.PromptTemplate
	now            func() time.Time
	logger         *slog.Logger
}

func NewAssistant(model domain.ChatModel, embedder domain.Embedder, store domain.VectorStore, opts Options) *Assistant {
	if opts.K <= 0 {
		opts.K = 3
	}
	if opts.CitationLabel == "" {
		opts.CitationLabel = "BNS Section"
	}
	if opts.TranslationLanguage == "" {
		opts.TranslationLanguage = "Telugu"
	}
	if opts.ContextMessages <= 0 {
		opts.ContextMessages = 4
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	return &Assistant{
		model:          model,
		embedder:       embedder,
		store:          store,
		opts:           opts,
		searchPrompt:   newSearchPrompt(),
		responsePrompt: newResponsePrompt(opts.CitationLabel, opts.TranslationLanguage),
		now:            time.Now,
		logger:         slog.Default().With("component", "assistant"),
	}
}

// NewSessionID returns an id of the form 20060102_150405_1a2b3c4d.
func NewSessionID(t time.Time) string {
	return t.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// NewMemory starts a fresh session.
func (a *Assistant) NewMemory() *domain.Memory {
	return &domain.Memory{SessionID: NewSessionID(a.now()), Messages: []domain.Message{}}
}

// ProcessQuery answers query within the session held by mem, creating one
// when mem is nil. The exchange is appended to the returned memory, including
// when the pipeline fails: the caller then gets ErrorMessage as the answer
// together with the error.
func (a *Assistant) ProcessQuery(ctx context.Context, mem *domain.Memory, query string) (Turn, error) {
	if mem == nil {
		mem = a.NewMemory()
	} else if mem.SessionID == "" {
		mem.SessionID = NewSessionID(a.now())
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Turn{Memory: mem}, ErrEmptyQuery
	}
	logger := a.logger.With("session", mem.SessionID)

	if IsSimpleContextQuestion(query) {
		answer := SimpleContextAnswer(query, mem.Messages)
		mem.Append(query, answer)
		logger.Info("answered from memory")
		return Turn{Memory: mem, Answer: answer, Contextual: true}, nil
	}

	turn, err := a.answer(ctx, logger, mem, query)
	if err != nil {
		logger.Error("error processing query", "err", err)
		mem.Append(query, ErrorMessage)
		return Turn{Memory: mem, Answer: ErrorMessage}, fmt.Errorf("process query: %w", err)
	}
	mem.Append(query, turn.Answer)
	return turn, nil
}

func (a *Assistant) answer(ctx context.Context, logger *slog.Logger, mem *domain.Memory, query string) (Turn, error) {
	convContext := ConversationContext(mem.Messages, a.opts.ContextMessages)
	logger.Debug("conversation context", "context", convContext)

	phrases, err := a.extractPhrases(ctx, query)
	if err != nil {
		return Turn{}, fmt.Errorf("extract phrases: %w", err)
	}
	logger.Info("search phrases", "phrases", phrases)

	matches, err := a.Search(ctx, phrases)
	if err != nil {
		return Turn{}, err
	}
	logger.Info("retrieved sections", "count", len(matches))

	user, err := a.responsePrompt.Format(map[string]any{
		"conv_context": convContext,
		"doc_context":  DocumentContext(matches, a.opts.CitationLabel),
		"query":        query,
	})
	if err != nil {
		return Turn{}, fmt.Errorf("render response prompt: %w", err)
	}
	answer, err := a.model.Generate(ctx, a.opts.SystemPrompt, user)
	if err != nil {
		return Turn{}, fmt.Errorf("generate response: %w", err)
	}
	return Turn{Memory: mem, Answer: answer, Phrases: phrases, Sources: matches}, nil
}

func (a *Assistant) extractPhrases(ctx context.Context, query string) ([]string, error) {
	user, err := a.searchPrompt.Format(map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	suggestions, err := a.model.Generate(ctx, searchSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	phrases := ExtractSearchPhrases(suggestions)
	if len(phrases) == 0 {
		phrases = []string{strings.ToLower(query)}
	}
	return phrases, nil
}

// Search runs one vector search per phrase and merges the hits by section
// number, keeping each section's best score. The result is ordered by score
// and holds at most K sections.
func (a *Assistant) Search(ctx context.Context, phrases []string) ([]domain.Match, error) {
	best := make(map[string]int)
	var merged []domain.Match
	for _, phrase := range phrases {
		vec, err := a.embedder.Embed(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", phrase, err)
		}
		hits, err := a.store.Search(ctx, vec, a.opts.K, a.opts.ScoreThreshold)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", phrase, err)
		}
		for _, h := range hits {
			i, ok := best[h.Section.Number]
			if !ok {
				best[h.Section.Number] = len(merged)
				merged = append(merged, h)
				continue
			}
			if h.Score > merged[i].Score {
				merged[i] = h
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > a.opts.K {
		merged = merged[:a.opts.K]
	}
	return merged, nil
}

// LookupSection fetches a section by number. A direct hit scores 1.
func (a *Assistant) LookupSection(ctx context.Context, number string) (*domain.Match, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.ErrNotFound
	}
	sec, err := a.store.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	return &domain.Match{Section: *sec, Score: 1.0}, nil
}

// SectionCount reports how many sections the store holds.
func (a *Assistant) SectionCount(ctx context.Context) (int, error) {
	return a.store.Count(ctx)
}

// CitationLabel is the prefix used when citing a section.
func (a *Assistant) CitationLabel() string { return a.opts.CitationLabel }
