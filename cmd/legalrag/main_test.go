package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/session"
)

const statute = `CHAPTER XVII
OF OFFENCES AGAINST PROPERTY
303. Theft.—Whoever, intending to take dishonestly any movable property out of the possession of any person without consent, moves that property, is said to commit theft.
304. Snatching.—Theft is snatching if the offender suddenly or forcibly seizes movable property.
`

func writeConfig(t *testing.T) (string, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	cfg.VectorDB.PersistDirectory = filepath.Join(dir, "db")
	cfg.Sessions.Path = filepath.Join(dir, "sessions.db")
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path, cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"legalrag"}, args...))
	return out.String(), err
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "", "INFO"} {
		_, err := newLogger(lvl, "text")
		assert.NoError(t, err, lvl)
	}
	_, err := newLogger("verbose", "text")
	assert.Error(t, err)
	_, err = newLogger("info", "json")
	assert.NoError(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestIngestThenSection(t *testing.T) {
	cfgPath, cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "bns.txt")
	require.NoError(t, os.WriteFile(file, []byte(statute), 0o644))

	out, err := run(t, "--config", cfgPath, "ingest", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 sections from 1 file(s) into bns_sections (badger")
	assert.Contains(t, out, "2 sections across 1 chapters")
	assert.FileExists(t, filepath.Join(cfg.VectorDB.PersistDirectory, "tfidf.json"))

	out, err = run(t, "--config", cfgPath, "section", "304")
	require.NoError(t, err)
	assert.Contains(t, out, "BNS Section 304: Snatching")
	assert.Contains(t, out, "CHAPTER XVII")
	assert.Contains(t, out, "forcibly seizes movable property")

	_, err = run(t, "--config", cfgPath, "section", "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BNS Section 999 not found")
}

func TestIngestRequiresFiles(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "ingest")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := run(t, "--config", cfgPath, "--log-level", "loud", "sessions", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestOpenRetrieval_NeedsIngestedState(t *testing.T) {
	_, cfg := writeConfig(t)
	_, err := openRetrieval(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrNotPrepared)
}

func TestOpenRetrieval_MemoryStoreIngestsFiles(t *testing.T) {
	_, cfg := writeConfig(t)
	cfg.VectorDB.Type = "memory"
	file := filepath.Join(t.TempDir(), "bns.txt")
	require.NoError(t, os.WriteFile(file, []byte(statute), 0o644))

	r, err := openRetrieval(context.Background(), cfg, []string{file})
	require.NoError(t, err)
	defer r.Close()
	n, err := r.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, r.digest)
}

func TestSection_MemoryStore(t *testing.T) {
	cfgPath, cfg := writeConfig(t)
	cfg.VectorDB.Type = "memory"
	require.NoError(t, config.Save(cfgPath, cfg))
	file := filepath.Join(t.TempDir(), "bns.txt")
	require.NoError(t, os.WriteFile(file, []byte(statute), 0o644))

	out, err := run(t, "--config", cfgPath, "section", "--files", file, "303")
	require.NoError(t, err)
	assert.Contains(t, out, "BNS Section 303: Theft")

	_, err = run(t, "--config", cfgPath, "section", "303")
	assert.ErrorIs(t, err, errMemoryNeedsFiles)

	_, err = openRetrieval(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, errMemoryNeedsFiles)
}

func TestSessionsCommands(t *testing.T) {
	cfgPath, cfg := writeConfig(t)
	st, err := session.Open(cfg.Sessions.Path)
	require.NoError(t, err)
	mem := &domain.Memory{SessionID: "20250101_090000_deadbeef"}
	mem.Append("what is theft?", "BNS Section 303 defines theft.")
	require.NoError(t, st.Save(context.Background(), mem))
	require.NoError(t, st.Close())

	out, err := run(t, "--config", cfgPath, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "20250101_090000_deadbeef    2 messages")

	out, err = run(t, "--config", cfgPath, "sessions", "show", mem.SessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "User: what is theft?\nAssistant: BNS Section 303 defines theft.")

	out, err = run(t, "--config", cfgPath, "sessions", "delete", mem.SessionID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, err = run(t, "--config", cfgPath, "sessions", "show", mem.SessionID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err = run(t, "--config", cfgPath, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")
}
