package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/service"
	"github.com/aifinitydigital/groq-app-01/internal/session"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore/memory"
)

type echoModel struct{ fail bool }

func (m echoModel) Generate(_ context.Context, system, user string) (string, error) {
	if strings.HasPrefix(system, "You are a legal research assistant") {
		return "theft", nil
	}
	if m.fail {
		return "", errors.New("upstream down")
	}
	return "See BNS Section 303.", nil
}

type constEmbedder struct{}

func (constEmbedder) Name() string                                     { return "const" }
func (constEmbedder) Prepare(context.Context, []string) error          { return nil }
func (constEmbedder) Dimension() int                                   { return 2 }
func (constEmbedder) Embed(context.Context, string) ([]float64, error) { return []float64{1, 0}, nil }

func newTestServer(t *testing.T, model domain.ChatModel) (http.Handler, *session.Store) {
	t.Helper()
	hd, sessions := newHandler(t, model)
	return NewEcho(hd), sessions
}

func newHandler(t *testing.T, model domain.ChatModel) (*Handler, *session.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := memory.NewStorage("cosine")
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx, 2))
	require.NoError(t, store.Upsert(ctx,
		[]domain.Section{{Number: "303", Title: "Theft", Content: "Whoever steals."}},
		[][]float64{{1, 0}}))
	sessions, err := session.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	a := service.NewAssistant(model, constEmbedder{}, store, service.Options{K: 3})
	return New(a, sessions), sessions
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, echoModel{})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sections":1}`, rec.Body.String())
}

func TestQuery_CreatesAndContinuesSession(t *testing.T) {
	h, sessions := newTestServer(t, echoModel{})

	rec := do(t, h, http.MethodPost, "/api/query", `{"query":"someone stole my bike"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "See BNS Section 303.", out.Answer)
	assert.Equal(t, []string{"theft"}, out.Phrases)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "303", out.Sources[0].Section.Number)
	require.NotEmpty(t, out.SessionID)

	rec = do(t, h, http.MethodPost, "/api/query", `{"session_id":"`+out.SessionID+`","query":"what did we discuss?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.Contextual)
	assert.Equal(t, "From our previous conversation: someone stole my bike See BNS Section 303.", second.Answer)

	mem, err := sessions.Load(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Len(t, mem.Messages, 4)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+out.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "someone stole my bike")

	rec = do(t, h, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), out.SessionID)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+out.SessionID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/sessions/"+out.SessionID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/sessions/"+out.SessionID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuery_Failures(t *testing.T) {
	h, sessions := newTestServer(t, echoModel{fail: true})

	rec := do(t, h, http.MethodPost, "/api/query", `{"session_id":"s1","query":"theft?"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var out queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, service.ErrorMessage, out.Answer)
	assert.Contains(t, out.Error, "upstream down")

	// the failed exchange is still recorded
	mem, err := sessions.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, service.ErrorMessage, mem.Messages[1].Content)

	rec = do(t, h, http.MethodPost, "/api/query", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/query", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSection(t *testing.T) {
	h, _ := newTestServer(t, echoModel{})

	rec := do(t, h, http.MethodGet, "/api/sections/303", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.Match
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Theft", m.Section.Title)
	assert.Equal(t, 1.0, m.Score)

	rec = do(t, h, http.MethodGet, "/api/sections/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession_WaitsForInFlightQuery(t *testing.T) {
	hd, sessions := newHandler(t, echoModel{})
	h := NewEcho(hd)
	mem := &domain.Memory{SessionID: "s1"}
	mem.Append("theft?", "BNS Section 303.")
	require.NoError(t, sessions.Save(context.Background(), mem))

	release := hd.lock("s1")
	done := make(chan int, 1)
	go func() {
		done <- do(t, h, http.MethodDelete, "/api/sessions/s1", "").Code
	}()

	select {
	case <-done:
		t.Fatal("delete finished while the session was locked")
	case <-time.After(50 * time.Millisecond):
	}
	release()

	select {
	case code := <-done:
		assert.Equal(t, http.StatusNoContent, code)
	case <-time.After(5 * time.Second):
		t.Fatal("delete never finished")
	}
	assert.Zero(t, hd.locks.size())
}

func TestSessionLocks_DropIdleEntries(t *testing.T) {
	var l sessionLocks
	first := l.acquire("a")
	acquired := make(chan func(), 1)
	go func() { acquired <- l.acquire("a") }()

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.held["a"] != nil && l.held["a"].refs == 2
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, acquired, 0)

	first()
	second := <-acquired
	assert.Equal(t, 1, l.size())
	second()
	assert.Zero(t, l.size())

	l.acquire("b")()
	assert.Zero(t, l.size())
}
