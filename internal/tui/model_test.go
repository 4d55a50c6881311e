package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/service"
)

type fakePort struct {
	err error
}

func (p fakePort) ProcessQuery(_ context.Context, mem *domain.Memory, q string) (service.Turn, error) {
	if p.err != nil {
		mem.Append(q, service.ErrorMessage)
		return service.Turn{Memory: mem, Answer: service.ErrorMessage}, p.err
	}
	mem.Append(q, "answer to "+q)
	return service.Turn{
		Memory: mem,
		Answer: "answer to " + q,
		Sources: []domain.Match{
			{Section: domain.Section{Number: "303", Title: "Theft", Content: "Whoever steals. Theft is punishable."}, Score: 0.9},
			{Section: domain.Section{Number: "304", Title: "Snatching", Content: "Snatching is theft."}, Score: 0.7},
		},
	}, nil
}

func (fakePort) NewMemory() *domain.Memory {
	return &domain.Memory{SessionID: "new"}
}

func (fakePort) CitationLabel() string { return "BNS Section" }

type recordingStore struct {
	domain.SessionStore
	saved []*domain.Memory
}

func (s *recordingStore) Save(_ context.Context, m *domain.Memory) error {
	s.saved = append(s.saved, m)
	return nil
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func submit(t *testing.T, m Model, q string) (Model, tea.Msg) {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	// run only the query command; the batch also holds the spinner tick
	msg := m.ask(q)()
	return m, msg
}

func TestModel_AskAndShowSources(t *testing.T) {
	store := &recordingStore{}
	m := sized(t, New(fakePort{}, store, &domain.Memory{SessionID: "s1"}, "2 sections across 1 chapters.\nmore"))
	assert.Contains(t, m.View(), "No messages yet.")

	m, msg := submit(t, m, "what is theft")
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.busy)
	require.Len(t, m.memory.Messages, 2)
	assert.Equal(t, "s1", m.memory.SessionID)
	assert.Contains(t, m.status, "2 source(s)")
	require.Len(t, store.saved, 1)

	view := m.View()
	assert.Contains(t, view, "answer to what is theft")
	assert.Contains(t, view, "2 sections across 1 chapters.")
	assert.NotContains(t, view, "more")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Contains(t, m.View(), "Source 1/2  BNS Section 303: Theft")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.View(), "Source 2/2  BNS Section 304")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(Model)
	assert.Equal(t, "new", m.memory.SessionID)
	assert.Nil(t, m.sources)
}

func TestModel_ErrorKeepsExchange(t *testing.T) {
	m := sized(t, New(fakePort{err: errors.New("boom")}, nil, nil, ""))
	m, msg := submit(t, m, "q")
	next, _ := m.Update(msg)
	m = next.(Model)
	assert.Equal(t, "Error: boom", m.status)
	require.Len(t, m.memory.Messages, 2)
	assert.Equal(t, service.ErrorMessage, m.memory.Messages[1].Content)
}

func TestModel_EnterIgnoredWhenEmpty(t *testing.T) {
	m := sized(t, New(fakePort{}, nil, nil, ""))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Whoever steals. Theft is punishable.", "punishable theft")
	assert.True(t, strings.HasPrefix(out, "Whoever steals. "))
	assert.Contains(t, out, "Theft is punishable.")

	assert.Equal(t, "a. b.", highlightBestSentence("a. b.", ""))
	assert.Equal(t, " ", highlightBestSentence(" ", "x"))
}
