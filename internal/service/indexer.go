package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/embedding"
	"github.com/aifinitydigital/groq-app-01/internal/statute"
	"github.com/aifinitydigital/groq-app-01/internal/summarizer"
)

// IndexerConfig tunes ingestion.
type IndexerConfig struct {
	// StateDir receives the state of Stateful embedders.
	StateDir        string
	Workers         int
	DigestSentences int
}

// Report describes one completed ingestion.
type Report struct {
	Files      int
	Sections   int
	Duplicates int
	Chapters   int
	Dimension  int
	Digest     string
	StatePath  string
}

// Indexer turns statute text files into stored section vectors.
type Indexer struct {
	splitter   *statute.Splitter
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	cfg        IndexerConfig
	logger     *slog.Logger
}

func NewIndexer(embedder domain.Embedder, store domain.VectorStore, summ domain.Summarizer, cfg IndexerConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DigestSentences <= 0 {
		cfg.DigestSentences = 3
	}
	return &Indexer{
		splitter:   statute.NewSplitter(),
		embedder:   embedder,
		store:      store,
		summarizer: summ,
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer"),
	}
}

// Ingest reads paths, splits them into sections and replaces or extends the
// stored collection. Embedders that build their vector space from the corpus
// always reset the collection, since old vectors live in a different space.
func (ix *Indexer) Ingest(ctx context.Context, paths []string, reset bool) (*Report, error) {
	docs, err := statute.ReadFiles(paths)
	if err != nil {
		return nil, err
	}
	sections, dups := ix.split(docs)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w in %d file(s)", domain.ErrNoSections, len(docs))
	}
	ix.logger.Info("split statute", "files", len(docs), "sections", len(sections), "duplicates", dups)

	corpus := make([]string, len(sections))
	for i, sec := range sections {
		corpus[i] = EmbeddingText(sec)
	}
	if err := ix.embedder.Prepare(ctx, corpus); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := ix.embedAll(ctx, corpus)
	if err != nil {
		return nil, err
	}

	stateful, isStateful := ix.embedder.(embedding.Stateful)
	if reset || isStateful {
		if err := ix.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
	}
	if err := ix.store.Init(ctx, ix.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := ix.store.Upsert(ctx, sections, vectors); err != nil {
		return nil, fmt.Errorf("upsert sections: %w", err)
	}

	rep := &Report{
		Files:      len(docs),
		Sections:   len(sections),
		Duplicates: dups,
		Chapters:   statute.Chapters(sections),
		Dimension:  ix.embedder.Dimension(),
	}
	if isStateful {
		rep.StatePath = embedding.StatePath(ix.cfg.StateDir, ix.embedder)
		if err := stateful.Save(rep.StatePath); err != nil {
			return nil, fmt.Errorf("save embedder state: %w", err)
		}
	}
	if ix.summarizer != nil {
		digest, err := summarizer.Digest(ix.summarizer, sections, rep.Chapters, ix.cfg.DigestSentences)
		if err != nil {
			ix.logger.Warn("digest failed", "err", err)
		}
		rep.Digest = digest
	}
	ix.logger.Info("ingest complete", "sections", rep.Sections, "chapters", rep.Chapters, "dimension", rep.Dimension)
	return rep, nil
}

// split keeps the first occurrence of every section number.
func (ix *Indexer) split(docs []statute.Document) ([]domain.Section, int) {
	var out []domain.Section
	seen := make(map[string]string)
	dups := 0
	for _, d := range docs {
		for _, sec := range ix.splitter.Split(d.Content) {
			if first, ok := seen[sec.Number]; ok {
				dups++
				ix.logger.Warn("duplicate section number, keeping first", "section", sec.Number, "first", first, "file", d.Path)
				continue
			}
			seen[sec.Number] = d.Path
			out = append(out, sec)
		}
	}
	return out, dups
}

func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	pool, err := ants.NewPool(ix.cfg.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	vectors := make([][]float64, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, text := range texts {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embed section %d: %w", i, err)
				}
				mu.Unlock()
				return
			}
			vectors[i] = vec
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, submitErr
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbeddingText is the text a section is embedded from.
func EmbeddingText(sec domain.Section) string {
	if sec.Title == "" {
		return sec.Content
	}
	return sec.Title + ". " + sec.Content
}
