package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force similarity.
// Upserting a section number that is already stored replaces it in place.
type Storage struct {
	mu        sync.RWMutex
	score     vectorstore.Scorer
	dimension int
	index     map[string]int
	vectors   [][]float64
	sections  []domain.Section
}

func NewStorage(distance string) (*Storage, error) {
	score, err := vectorstore.ScorerFor(distance)
	if err != nil {
		return nil, err
	}
	return &Storage{score: score, index: make(map[string]int)}, nil
}

// Init sets the vector dimension. Existing vectors survive if the dimension
// is unchanged.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.resetLocked()
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, sections []domain.Section, vectors [][]float64) error {
	if len(sections) != len(vectors) {
		return errors.New("sections and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), s.dimension)
		}
	}
	for i, sec := range sections {
		if j, ok := s.index[sec.ID()]; ok {
			s.sections[j] = sec
			s.vectors[j] = vectors[i]
			continue
		}
		s.index[sec.ID()] = len(s.sections)
		s.sections = append(s.sections, sec)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int, minScore float64) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Match, len(s.vectors))
	for i := range s.vectors {
		matches[i] = domain.Match{Section: s.sections[i], Score: s.score(s.vectors[i], vector)}
	}
	return vectorstore.Rank(matches, topK, minScore), nil
}

func (s *Storage) Get(_ context.Context, number string) (*domain.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[domain.SectionID(number)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sec := s.sections[i]
	return &sec, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sections), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) resetLocked() {
	s.index = make(map[string]int)
	s.vectors = nil
	s.sections = nil
}
