// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/service"
)

type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type queryResponse struct {
	SessionID  string         `json:"session_id"`
	Answer     string         `json:"answer"`
	Phrases    []string       `json:"phrases,omitempty"`
	Sources    []domain.Match `json:"sources,omitempty"`
	Contextual bool           `json:"contextual,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Handler serves the query, section and session endpoints.
type Handler struct {
	assistant *service.Assistant
	sessions  domain.SessionStore
	locks     sessionLocks
	logger    *slog.Logger
}

func New(assistant *service.Assistant, sessions domain.SessionStore) *Handler {
	return &Handler{
		assistant: assistant,
		sessions:  sessions,
		logger:    slog.Default().With("component", "http"),
	}
}

// Register mounts the routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.health)
	g := e.Group("/api")
	g.POST("/query", h.query)
	g.GET("/sections/:number", h.section)
	g.GET("/sessions", h.listSessions)
	g.GET("/sessions/:id", h.getSession)
	g.DELETE("/sessions/:id", h.deleteSession)
}

// NewEcho builds the echo instance with the standard middleware.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			h.logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	h.Register(e)
	return e
}

// Run serves e on addr until ctx is cancelled.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

func (h *Handler) health(c echo.Context) error {
	n, err := h.assistant.SectionCount(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "sections": n})
}

func (h *Handler) lock(id string) func() { return h.locks.acquire(id) }

// sessionLocks serializes requests per session id. An entry lives only while
// some request holds or waits for it.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func (l *sessionLocks) acquire(id string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*sessionLock)
	}
	s, ok := l.held[id]
	if !ok {
		s = &sessionLock{}
		l.held[id] = s
	}
	s.refs++
	l.mu.Unlock()

	s.Lock()
	return func() {
		s.Unlock()
		l.mu.Lock()
		if s.refs--; s.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func (h *Handler) query(c echo.Context) error {
	var in queryRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	ctx := c.Request().Context()

	var mem *domain.Memory
	if in.SessionID != "" {
		defer h.lock(in.SessionID)()
		loaded, err := h.sessions.Load(ctx, in.SessionID)
		switch {
		case err == nil:
			mem = loaded
		case errors.Is(err, domain.ErrNotFound):
			mem = &domain.Memory{SessionID: in.SessionID}
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	turn, err := h.assistant.ProcessQuery(ctx, mem, in.Query)
	if errors.Is(err, service.ErrEmptyQuery) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query is required"})
	}
	if saveErr := h.sessions.Save(ctx, turn.Memory); saveErr != nil {
		h.logger.Error("save session", "session", turn.Memory.SessionID, "err", saveErr)
	}
	out := queryResponse{
		SessionID:  turn.Memory.SessionID,
		Answer:     turn.Answer,
		Phrases:    turn.Phrases,
		Sources:    turn.Sources,
		Contextual: turn.Contextual,
	}
	if err != nil {
		out.Error = err.Error()
		return c.JSON(http.StatusBadGateway, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) section(c echo.Context) error {
	m, err := h.assistant.LookupSection(c.Request().Context(), c.Param("number"))
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "section not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) listSessions(c echo.Context) error {
	list, err := h.sessions.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) getSession(c echo.Context) error {
	mem, err := h.sessions.Load(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, mem)
}

func (h *Handler) deleteSession(c echo.Context) error {
	id := c.Param("id")
	defer h.lock(id)()
	err := h.sessions.Delete(c.Request().Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
