package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/embedding"
	"github.com/aifinitydigital/groq-app-01/internal/llm"
	"github.com/aifinitydigital/groq-app-01/internal/service"
	"github.com/aifinitydigital/groq-app-01/internal/session"
	"github.com/aifinitydigital/groq-app-01/internal/summarizer"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore/badger"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore/memory"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore/qdrant"
)

var errMemoryNeedsFiles = errors.New("the memory vector store keeps nothing between runs; pass --files to ingest statutes first")

func openStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	db := cfg.VectorDB
	switch db.Type {
	case "badger":
		return badger.Open(badger.Config{
			Path:       filepath.Join(db.PersistDirectory, "badger"),
			Collection: db.Collection,
			Distance:   db.DistanceStrategy,
		})
	case "memory":
		return memory.NewStorage(db.DistanceStrategy)
	case "qdrant":
		if db.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		key, err := config.APIKey(db.Qdrant.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        db.Qdrant.URL,
			APIKey:     key,
			Collection: db.Collection,
			Distance:   db.DistanceStrategy,
			Timeout:    time.Duration(db.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", db.Type)
	}
}

func newIndexer(cfg *config.AppConfig, emb domain.Embedder, store vectorstore.Storage) *service.Indexer {
	return service.NewIndexer(emb, store, summarizer.NewFrequencySummarizer(), service.IndexerConfig{
		StateDir: cfg.VectorDB.PersistDirectory,
		Workers:  cfg.Encoder.Workers,
	})
}

// retrieval is the store and embedder pair ready for queries.
type retrieval struct {
	store    vectorstore.Storage
	embedder domain.Embedder
	digest   string
}

func (r *retrieval) Close() error { return r.store.Close() }

// openRetrieval opens the configured store and readies the embedder, either
// by ingesting files now or by restoring the state of an earlier ingest.
func openRetrieval(ctx context.Context, cfg *config.AppConfig, files []string) (*retrieval, error) {
	if len(files) == 0 && cfg.VectorDB.Type == "memory" {
		return nil, errMemoryNeedsFiles
	}
	emb, err := embedding.New(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	r := &retrieval{store: store, embedder: emb}
	if len(files) > 0 {
		rep, err := newIndexer(cfg, emb, store).Ingest(ctx, files, false)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		r.digest = rep.Digest
		return r, nil
	}
	if st, ok := emb.(embedding.Stateful); ok {
		if err := st.Load(embedding.StatePath(cfg.VectorDB.PersistDirectory, emb)); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return r, nil
}

// openSectionStore opens the store for direct lookups. Lookups need no
// embedder, so files are only ingested when given.
func openSectionStore(ctx context.Context, cfg *config.AppConfig, files []string) (vectorstore.Storage, error) {
	if len(files) > 0 {
		r, err := openRetrieval(ctx, cfg, files)
		if err != nil {
			return nil, err
		}
		return r.store, nil
	}
	if cfg.VectorDB.Type == "memory" {
		return nil, errMemoryNeedsFiles
	}
	return openStore(cfg)
}

func newAssistant(cfg *config.AppConfig, r *retrieval) (*service.Assistant, error) {
	model, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return service.NewAssistant(model, r.embedder, r.store, service.OptionsFrom(cfg)), nil
}

func openSessions(cfg *config.AppConfig) (*session.Store, error) {
	return session.Open(cfg.Sessions.Path)
}

// loadSession resumes id from the store, or starts it fresh when unknown.
func loadSession(ctx context.Context, sessions domain.SessionStore, id string) (*domain.Memory, error) {
	if id == "" {
		return nil, nil
	}
	mem, err := sessions.Load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Memory{SessionID: id}, nil
	}
	return mem, err
}
