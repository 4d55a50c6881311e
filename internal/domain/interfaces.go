package domain

import (
	"context"
	"strings"
)

// Section is a single numbered provision of a statute.
type Section struct {
	Number  string `json:"section_num"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Chapter string `json:"chapter"`
}

// ID is the storage key of a section. The section number is the only identity
// a stored chunk has.
func (s Section) ID() string { return SectionID(s.Number) }

// SectionID returns the storage key for a section number.
func SectionID(number string) string { return "section_" + strings.TrimSpace(number) }

// Match is a retrieved section with its similarity score.
type Match struct {
	Section Section `json:"section"`
	Score   float64 `json:"score"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Memory holds the ordered conversation of one session. It only grows while
// the session is alive.
type Memory struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// Append records a user question and the assistant reply as one exchange.
func (m *Memory) Append(question, answer string) {
	m.Messages = append(m.Messages,
		Message{Role: RoleUser, Content: question},
		Message{Role: RoleAssistant, Content: answer},
	)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus and must
// allow concurrent Embed calls once prepared.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore persists section vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, sections []Section, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int, minScore float64) ([]Match, error)
	Get(ctx context.Context, number string) (*Section, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// ChatModel sends one system + user prompt pair to a language model.
type ChatModel interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// SessionStore persists chat memories between runs.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*Memory, error)
	Save(ctx context.Context, memory *Memory) error
	List(ctx context.Context) ([]SessionInfo, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// SessionInfo describes a stored session without its messages.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Messages  int    `json:"messages"`
	UpdatedAt int64  `json:"updated_at"`
}
