package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/vectorstore"
)

// pointNamespace seeds the deterministic point ids derived from section ids.
var pointNamespace = uuid.MustParse("6f1c1f1e-5d0a-4a43-9a53-3c4f2f1b7a10")

// Storage is a minimal REST client to Qdrant.
// Points are keyed by a UUID derived from the section id, so re-ingesting a
// section overwrites its point.
type Storage struct {
	url        string
	apiKey     string
	collection string
	distance   string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Distance   string
	Timeout    time.Duration
}

// errStatus carries a non-2xx response.
type errStatus struct {
	method, url string
	code        int
	status      string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func NewStorage(cfg Config) (*Storage, error) {
	if _, err := vectorstore.ScorerFor(cfg.Distance); err != nil {
		return nil, err
	}
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, errors.New("qdrant store: url and collection are required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "cosine"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   distance,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// PointID returns the Qdrant point id of a section.
func PointID(sectionID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(sectionID)).String()
}

func (s *Storage) qdrantDistance() string {
	switch s.distance {
	case "ip":
		return "Dot"
	case "l2":
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// Init creates the collection if missing and recreates it when its vector
// size differs from dimension.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &info)
	var st *errStatus
	switch {
	case err == nil && info.Result.Config.Params.Vectors.Size == dimension:
		s.dimension = dimension
		return nil
	case err == nil:
		if err := s.Clear(ctx); err != nil {
			return err
		}
	case errors.As(err, &st) && st.code == http.StatusNotFound:
	default:
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": s.qdrantDistance(),
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func payload(sec domain.Section) map[string]any {
	return map[string]any{
		"section_id":  sec.ID(),
		"section_num": sec.Number,
		"title":       sec.Title,
		"content":     sec.Content,
		"chapter":     sec.Chapter,
	}
}

func sectionFrom(p map[string]any) domain.Section {
	str := func(k string) string {
		v, _ := p[k].(string)
		return v
	}
	return domain.Section{
		Number:  str("section_num"),
		Title:   str("title"),
		Content: str("content"),
		Chapter: str("chapter"),
	}
}

func (s *Storage) Upsert(ctx context.Context, sections []domain.Section, vectors [][]float64) error {
	if len(sections) != len(vectors) {
		return errors.New("sections and vectors length mismatch")
	}
	points := make([]map[string]any, len(sections))
	for i, sec := range sections {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		points[i] = map[string]any{
			"id":      PointID(sec.ID()),
			"vector":  vectors[i],
			"payload": payload(sec),
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, minScore float64) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	// Euclid scores are distances; the threshold is applied after conversion.
	if s.distance != "l2" {
		req["score_threshold"] = minScore
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		score := r.Score
		if s.distance == "l2" {
			score = 1 - score*score
		}
		matches = append(matches, domain.Match{Section: sectionFrom(r.Payload), Score: score})
	}
	return vectorstore.Rank(matches, topK, minScore), nil
}

func (s *Storage) Get(ctx context.Context, number string) (*domain.Section, error) {
	var resp struct {
		Result struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL()+"/points/"+PointID(domain.SectionID(number)), nil, &resp)
	var st *errStatus
	if errors.As(err, &st) && st.code == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sec := sectionFrom(resp.Result.Payload)
	return &sec, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	var st *errStatus
	if errors.As(err, &st) && st.code == http.StatusNotFound {
		return 0, nil
	}
	return resp.Result.Count, err
}

// Clear drops the collection; Init must run before the next Upsert.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	var st *errStatus
	if err != nil && !(errors.As(err, &st) && st.code == http.StatusNotFound) {
		return err
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &errStatus{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
