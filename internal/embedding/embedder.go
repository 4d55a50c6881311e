package embedding

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aifinitydigital/groq-app-01/internal/config"
	"github.com/aifinitydigital/groq-app-01/internal/domain"
	"github.com/aifinitydigital/groq-app-01/internal/embedding/openai"
	"github.com/aifinitydigital/groq-app-01/internal/embedding/tfidf"
)

// Stateful embedders build their vector space at ingest time and must carry
// it to later processes.
type Stateful interface {
	Save(path string) error
	Load(path string) error
}

// StatePath is where a Stateful embedder keeps its state for a store
// persisted under dir.
func StatePath(dir string, e domain.Embedder) string {
	return filepath.Join(dir, e.Name()+".json")
}

// New assembles the embedder selected by cfg.Type.
func New(cfg config.EncoderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		key, err := config.APIKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return openai.NewClient(openai.Config{
			BaseURL:    cfg.BaseURL,
			APIKey:     key,
			Model:      cfg.ModelName,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxRetries: cfg.MaxRetries,
			MaxWords:   cfg.MaxWords,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
