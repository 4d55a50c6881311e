package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore"
)

// Storage is a persistent vector store on an embedded BadgerDB.
//
// Key layout per collection:
//
//	<collection>/meta        dimension
//	<collection>/sec/<id>    section JSON
//	<collection>/vec/<id>    little-endian float64 vector
type Storage struct {
	db         *badger.DB
	collection string
	score      vectorstore.Scorer
	dimension  int
	logger     *slog.Logger
}

// Config configures the badger store.
type Config struct {
	Path       string
	InMemory   bool
	Collection string
	Distance   string
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (or creates) the database directory.
func Open(cfg Config) (*Storage, error) {
	score, err := vectorstore.ScorerFor(cfg.Distance)
	if err != nil {
		return nil, err
	}
	if cfg.Collection == "" {
		return nil, errors.New("badger store: collection name is required")
	}
	logger := slog.Default().With("component", "badger-store", "collection", cfg.Collection)

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}
	s := &Storage{db: db, collection: cfg.Collection, score: score, logger: logger}
	if err := s.loadMeta(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) metaKey() []byte          { return []byte(s.collection + "/meta") }
func (s *Storage) secPrefix() []byte        { return []byte(s.collection + "/sec/") }
func (s *Storage) vecPrefix() []byte        { return []byte(s.collection + "/vec/") }
func (s *Storage) secKey(id string) []byte  { return append(s.secPrefix(), id...) }
func (s *Storage) vecKey(id string) []byte  { return append(s.vecPrefix(), id...) }
func (s *Storage) collectionPrefix() []byte { return []byte(s.collection + "/") }

func (s *Storage) loadMeta() error {
	return s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(s.metaKey())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("corrupt collection meta: %w", err)
			}
			s.dimension = d
			return nil
		})
	})
}

// Init fixes the collection dimension. A collection built with another
// dimension is dropped, since its vectors cannot be compared any more.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if s.dimension == dimension {
		return nil
	}
	if s.dimension != 0 {
		s.logger.Warn("dimension changed, dropping collection", "old", s.dimension, "new", dimension)
		if err := s.Clear(ctx); err != nil {
			return err
		}
	}
	if err := s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(s.metaKey(), []byte(strconv.Itoa(dimension)))
	}); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, sections []domain.Section, vectors [][]float64) error {
	if len(sections) != len(vectors) {
		return errors.New("sections and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), s.dimension)
		}
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, sec := range sections {
		data, err := json.Marshal(sec)
		if err != nil {
			return err
		}
		if err := wb.Set(s.secKey(sec.ID()), data); err != nil {
			return err
		}
		if err := wb.Set(s.vecKey(sec.ID()), encodeVector(vectors[i])); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	s.logger.Debug("upserted sections", "count", len(sections))
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, minScore float64) ([]domain.Match, error) {
	var hits []domain.Match
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.vecPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// score every vector first, then read only the sections that survive ranking
		var scored []domain.Match
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			number := strings.TrimPrefix(string(item.Key()[len(opts.Prefix):]), "section_")
			err := item.Value(func(val []byte) error {
				v, err := decodeVector(val)
				if err != nil {
					return err
				}
				scored = append(scored, domain.Match{Section: domain.Section{Number: number}, Score: s.score(v, vector)})
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, m := range vectorstore.Rank(scored, topK, minScore) {
			sec, err := s.readSection(tx, m.Section.ID())
			if err != nil {
				return err
			}
			hits = append(hits, domain.Match{Section: *sec, Score: m.Score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *Storage) readSection(tx *badger.Txn, id string) (*domain.Section, error) {
	item, err := tx.Get(s.secKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sec domain.Section
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &sec) }); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (s *Storage) Get(_ context.Context, number string) (*domain.Section, error) {
	var sec *domain.Section
	err := s.db.View(func(tx *badger.Txn) error {
		var err error
		sec, err = s.readSection(tx, domain.SectionID(number))
		return err
	})
	return sec, err
}

func (s *Storage) Count(context.Context) (int, error) {
	n := 0
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.secPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear drops every key of the collection, including its dimension.
func (s *Storage) Clear(context.Context) error {
	if err := s.db.DropPrefix(s.collectionPrefix()); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, nil
}
