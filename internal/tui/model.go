package tui

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/service"
)

// ChatPort is the TUI-facing subset of the assistant.
type ChatPort interface {
	ProcessQuery(ctx context.Context, mem *domain.Memory, query string) (service.Turn, error)
	NewMemory() *domain.Memory
	CitationLabel() string
}

type answerMsg struct {
	query string
	turn  service.Turn
	err   error
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	port     ChatPort
	sessions domain.SessionStore
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	memory   *domain.Memory
	sources  []domain.Match
	summary  string
	status   string
	cursor   int
	// showSources swaps the transcript for the retrieved sections.
	showSources bool
	busy        bool
	ready       bool
	lastQuery   string
}

// New creates the chat model. mem may be nil to start a new session;
// sessions may be nil to keep the conversation in memory only.
func New(port ChatPort, sessions domain.SessionStore, mem *domain.Memory, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a legal question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if mem == nil {
		mem = port.NewMemory()
	}
	return Model{
		port:     port,
		sessions: sessions,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		memory:   mem,
		summary:  summary,
		status:   "Session " + mem.SessionID + ". Tab: sources, Ctrl+L: new session.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		m.memory = msg.turn.Memory
		m.lastQuery = msg.query
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.sources = msg.turn.Sources
			m.cursor = 0
			m.status = fmt.Sprintf("%d source(s) for %q", len(m.sources), msg.query)
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = "Thinking..."
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "ctrl+l":
			if m.busy {
				return m, nil
			}
			m.memory = m.port.NewMemory()
			m.sources, m.cursor, m.lastQuery = nil, 0, ""
			m.status = "New session " + m.memory.SessionID
			m.refresh()
			return m, nil
		case "down":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.showSources && len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the query on a copy of the memory so View never reads a
// conversation that is being appended to.
func (m Model) ask(q string) tea.Cmd {
	port, sessions := m.port, m.sessions
	mem := &domain.Memory{SessionID: m.memory.SessionID, Messages: slices.Clone(m.memory.Messages)}
	return func() tea.Msg {
		ctx := context.Background()
		turn, err := port.ProcessQuery(ctx, mem, q)
		if sessions != nil && turn.Memory != nil && len(turn.Memory.Messages) > 0 {
			if saveErr := sessions.Save(ctx, turn.Memory); saveErr != nil && err == nil {
				err = fmt.Errorf("save session: %w", saveErr)
			}
		}
		return answerMsg{query: q, turn: turn, err: err}
	}
}

func (m *Model) refresh() {
	if m.showSources {
		m.viewport.SetContent(m.renderCurrentSource())
		return
	}
	m.viewport.SetContent(m.renderTranscript())
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Legal Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(firstLine(m.summary))
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.memory.Messages) == 0 {
		return "No messages yet."
	}
	wrap := lipgloss.NewStyle().Width(max(10, m.viewport.Width-4))
	var b strings.Builder
	for i, msg := range m.memory.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		who := assistantStyle.Render("Assistant:")
		if msg.Role == domain.RoleUser {
			who = userStyle.Render("You:")
		}
		b.WriteString(who + "\n" + wrap.Render(msg.Content))
	}
	return b.String()
}

func (m Model) renderCurrentSource() string {
	if len(m.sources) == 0 {
		return "No sources yet."
	}
	r := m.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s %s: %s  score=%.3f",
		m.cursor+1, len(m.sources), m.port.CitationLabel(), r.Section.Number, r.Section.Title, r.Score)
	body := highlightBestSentence(r.Section.Content, m.lastQuery)
	wrap := lipgloss.NewStyle().Width(max(10, m.viewport.Width-4))
	return title + "\n\n" + wrap.Render(body)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?;]+(?:[.!?;]+|$)`)
)

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		for i := range sentences {
			sentences[i] = strings.TrimSpace(sentences[i])
		}
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
