package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/embedding"
	"github.com/aifinitydigital/groq-app-01/internal/server"
	"github.com/aifinitydigital/groq-app-01/internal/service"
	"github.com/aifinitydigital/groq-app-01/internal/tui"
)

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one statute file is required")
	}
	cfg := appConfig(c)
	emb, err := embedding.New(cfg.Encoder)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	rep, err := newIndexer(cfg, emb, store).Ingest(c.Context, c.Args().Slice(), c.Bool("reset"))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Indexed %d sections from %d file(s) into %s (%s, dim %d) in %s\n",
		rep.Sections, rep.Files, cfg.VectorDB.Collection, cfg.VectorDB.Type, rep.Dimension, time.Since(start).Round(time.Millisecond))
	if rep.Duplicates > 0 {
		fmt.Fprintf(w, "Skipped %d duplicate section number(s)\n", rep.Duplicates)
	}
	if rep.StatePath != "" {
		fmt.Fprintf(w, "Embedder state: %s\n", rep.StatePath)
	}
	if rep.Digest != "" {
		fmt.Fprintf(w, "\n%s\n", rep.Digest)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a question is required")
	}
	cfg := appConfig(c)
	ctx := c.Context
	r, err := openRetrieval(ctx, cfg, c.StringSlice("files"))
	if err != nil {
		return err
	}
	defer r.Close()
	assistant, err := newAssistant(cfg, r)
	if err != nil {
		return err
	}

	var sessions *sessionsHandle
	if id := c.String("session"); id != "" {
		sessions, err = openSessionsHandle(ctx, cfg, id)
		if err != nil {
			return err
		}
		defer sessions.Close()
	}
	turn, qerr := assistant.ProcessQuery(ctx, sessions.memory(), query)
	if sessions != nil && turn.Memory != nil {
		if err := sessions.store.Save(ctx, turn.Memory); err != nil {
			return err
		}
	}
	w := c.App.Writer
	fmt.Fprintln(w, turn.Answer)
	if len(turn.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, m := range turn.Sources {
			fmt.Fprintf(w, "  %s %s: %s (score %.3f)\n", assistant.CitationLabel(), m.Section.Number, m.Section.Title, m.Score)
		}
	}
	return qerr
}

func sectionCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one section number is required")
	}
	cfg := appConfig(c)
	store, err := openSectionStore(c.Context, cfg, c.StringSlice("files"))
	if err != nil {
		return err
	}
	defer store.Close()
	sec, err := store.Get(c.Context, c.Args().First())
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s %s not found", cfg.Retrieval.CitationLabel, c.Args().First())
	}
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "%s %s: %s\n", cfg.Retrieval.CitationLabel, sec.Number, sec.Title)
	if sec.Chapter != "" {
		fmt.Fprintln(w, sec.Chapter)
	}
	fmt.Fprintf(w, "\n%s\n", sec.Content)
	return nil
}

func chatCommand(c *cli.Context) error {
	cfg := appConfig(c)
	ctx := c.Context
	r, err := openRetrieval(ctx, cfg, c.StringSlice("files"))
	if err != nil {
		return err
	}
	defer r.Close()
	assistant, err := newAssistant(cfg, r)
	if err != nil {
		return err
	}
	sessions, err := openSessionsHandle(ctx, cfg, c.String("session"))
	if err != nil {
		return err
	}
	defer sessions.Close()

	m := tui.New(assistant, sessions.store, sessions.memory(), r.digest)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func serveCommand(c *cli.Context) error {
	cfg := appConfig(c)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := openRetrieval(ctx, cfg, c.StringSlice("files"))
	if err != nil {
		return err
	}
	defer r.Close()
	assistant, err := newAssistant(cfg, r)
	if err != nil {
		return err
	}
	sessions, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	addr := cfg.Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}
	e := server.NewEcho(server.New(assistant, sessions))
	fmt.Fprintf(c.App.Writer, "Listening on %s\n", addr)
	return server.Run(ctx, e, addr)
}

func sessionsListCommand(c *cli.Context) error {
	sessions, err := openSessions(appConfig(c))
	if err != nil {
		return err
	}
	defer sessions.Close()
	list, err := sessions.List(c.Context)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s  %3d messages  updated %s\n", s.SessionID, s.Messages, time.Unix(s.UpdatedAt, 0).Format(time.DateTime))
	}
	return nil
}

func sessionsShowCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one session id is required")
	}
	sessions, err := openSessions(appConfig(c))
	if err != nil {
		return err
	}
	defer sessions.Close()
	mem, err := sessions.Load(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("session %s: %w", c.Args().First(), err)
	}
	fmt.Fprintln(c.App.Writer, service.ConversationContext(mem.Messages, 0))
	return nil
}

func sessionsDeleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one session id is required")
	}
	sessions, err := openSessions(appConfig(c))
	if err != nil {
		return err
	}
	defer sessions.Close()
	if err := sessions.Delete(c.Context, c.Args().First()); err != nil {
		return fmt.Errorf("session %s: %w", c.Args().First(), err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", c.Args().First())
	return nil
}

// sessionsHandle pairs the session store with the memory being resumed.
type sessionsHandle struct {
	store domain.SessionStore
	mem   *domain.Memory
}

func openSessionsHandle(ctx context.Context, cfg *config.AppConfig, id string) (*sessionsHandle, error) {
	store, err := openSessions(cfg)
	if err != nil {
		return nil, err
	}
	mem, err := loadSession(ctx, store, id)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &sessionsHandle{store: store, mem: mem}, nil
}

// memory is nil for a nil handle, which starts a new session.
func (h *sessionsHandle) memory() *domain.Memory {
	if h == nil {
		return nil
	}
	return h.mem
}

func (h *sessionsHandle) Close() error { return h.store.Close() }
