package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelConfig configures one chat model provider.
type ModelConfig struct {
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs,omitempty"`
}

// LLMConfig selects the chat model provider.
type LLMConfig struct {
	Provider string                 `yaml:"provider"`
	Models   map[string]ModelConfig `yaml:"models"`
}

// EncoderConfig selects and configures the text embedder implementation.
type EncoderConfig struct {
	Type        string `yaml:"type"`
	ModelName   string `yaml:"model_name,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
	MaxRetries  int    `yaml:"max_retries,omitempty"`
	MaxWords    int    `yaml:"max_words,omitempty"`
	Workers     int    `yaml:"workers"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// VectorDBConfig selects and configures the vector store implementation.
type VectorDBConfig struct {
	Type             string        `yaml:"type"`
	PersistDirectory string        `yaml:"persist_directory"`
	Collection       string        `yaml:"collection"`
	DistanceStrategy string        `yaml:"distance_strategy"`
	Qdrant           *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrievalConfig controls how many sections reach the prompt.
type RetrievalConfig struct {
	K              int     `yaml:"k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	CitationLabel  string  `yaml:"citation_label"`
}

// AssistantConfig controls the response prompt.
type AssistantConfig struct {
	TranslationLanguage string `yaml:"translation_language"`
	ContextMessages     int    `yaml:"context_messages"`
}

// SessionsConfig locates the chat history database.
type SessionsConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM          LLMConfig       `yaml:"llm"`
	Encoder      EncoderConfig   `yaml:"encoder"`
	VectorDB     VectorDBConfig  `yaml:"vector_db"`
	Retrieval    RetrievalConfig `yaml:"retrieval"`
	Assistant    AssistantConfig `yaml:"assistant"`
	SystemPrompt string          `yaml:"system_prompt"`
	Sessions     SessionsConfig  `yaml:"sessions"`
	Server       ServerConfig    `yaml:"server"`
	Logging      LoggingConfig   `yaml:"logging"`
}

// DefaultSystemPrompt is used when the config file does not set one.
const DefaultSystemPrompt = `You are an expert legal assistant specialising in the Bharatiya Nyaya Sanhita (BNS), 2023.
Answer only from the statute sections you are given, cite them as "BNS Section X",
and say plainly when the provided sections do not cover the question.`

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/legalrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/legalrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ActiveModel returns the settings of the selected LLM provider.
func (c *AppConfig) ActiveModel() ModelConfig {
	return c.LLM.Models[c.LLM.Provider]
}

// APIKey resolves a key from the named environment variable.
func APIKey(env string) (string, error) {
	if env == "" {
		return "", nil
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("missing API key in env %s", env)
	}
	return key, nil
}

// Validate rejects settings the rest of the application cannot act on.
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case "openai", "groq", "anthropic":
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}
	if c.ActiveModel().ModelName == "" {
		return fmt.Errorf("llm.models.%s.model_name is required", c.LLM.Provider)
	}
	switch c.Encoder.Type {
	case "tfidf", "openai":
	default:
		return fmt.Errorf("unknown encoder: %q", c.Encoder.Type)
	}
	switch c.VectorDB.Type {
	case "badger", "memory":
	case "qdrant":
		if c.VectorDB.Qdrant == nil || c.VectorDB.Qdrant.URL == "" {
			return errors.New("vector_db.qdrant.url is required for the qdrant store")
		}
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorDB.Type)
	}
	switch c.VectorDB.DistanceStrategy {
	case "cosine", "ip", "l2":
	default:
		return fmt.Errorf("unknown distance strategy: %q", c.VectorDB.DistanceStrategy)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be within [-1, 1], got %v", c.Retrieval.ScoreThreshold)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "legalrag", "config.yaml"), nil
}

func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"openai": {
			ModelName:   "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   2048,
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		"groq": {
			ModelName:   "llama-3.3-70b-versatile",
			Temperature: 0.1,
			MaxTokens:   2048,
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
		},
		"anthropic": {
			ModelName:   "claude-3-5-haiku-latest",
			Temperature: 0.1,
			MaxTokens:   2048,
			APIKeyEnv:   "ANTHROPIC_API_KEY",
		},
	}
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		LLM:     LLMConfig{Provider: "groq", Models: defaultModels()},
		Encoder: EncoderConfig{Type: "tfidf"},
		VectorDB: VectorDBConfig{
			Type:             "badger",
			PersistDirectory: "./bns_db",
			Collection:       "bns_sections",
			DistanceStrategy: "cosine",
		},
		Retrieval:    RetrievalConfig{K: 3, CitationLabel: "BNS Section"},
		Assistant:    AssistantConfig{TranslationLanguage: "Telugu", ContextMessages: 4},
		SystemPrompt: DefaultSystemPrompt,
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.Models == nil {
		cfg.LLM.Models = map[string]ModelConfig{}
	}
	for name, def := range defaultModels() {
		m, ok := cfg.LLM.Models[name]
		if !ok {
			cfg.LLM.Models[name] = def
			continue
		}
		if m.ModelName == "" {
			m.ModelName = def.ModelName
		}
		if m.MaxTokens == 0 {
			m.MaxTokens = def.MaxTokens
		}
		if m.BaseURL == "" {
			m.BaseURL = def.BaseURL
		}
		if m.APIKeyEnv == "" {
			m.APIKeyEnv = def.APIKeyEnv
		}
		cfg.LLM.Models[name] = m
	}
	if cfg.Encoder.Type == "" {
		cfg.Encoder.Type = "tfidf"
	}
	if cfg.Encoder.Type == "openai" {
		if cfg.Encoder.BaseURL == "" {
			cfg.Encoder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Encoder.APIKeyEnv == "" {
			cfg.Encoder.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Encoder.ModelName == "" {
			cfg.Encoder.ModelName = "text-embedding-3-small"
		}
		if cfg.Encoder.TimeoutSecs == 0 {
			cfg.Encoder.TimeoutSecs = 30
		}
		if cfg.Encoder.MaxRetries == 0 {
			cfg.Encoder.MaxRetries = 5
		}
		if cfg.Encoder.MaxWords == 0 {
			cfg.Encoder.MaxWords = 512
		}
	}
	if cfg.Encoder.Workers <= 0 {
		cfg.Encoder.Workers = 4
	}
	if cfg.VectorDB.Type == "" {
		cfg.VectorDB.Type = "badger"
	}
	if cfg.VectorDB.PersistDirectory == "" {
		cfg.VectorDB.PersistDirectory = "./bns_db"
	}
	if cfg.VectorDB.Collection == "" {
		cfg.VectorDB.Collection = "bns_sections"
	}
	if cfg.VectorDB.DistanceStrategy == "" {
		cfg.VectorDB.DistanceStrategy = "cosine"
	}
	if q := cfg.VectorDB.Qdrant; q != nil && q.TimeoutSecs == 0 {
		q.TimeoutSecs = 15
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.CitationLabel == "" {
		cfg.Retrieval.CitationLabel = "BNS Section"
	}
	if cfg.Assistant.TranslationLanguage == "" {
		cfg.Assistant.TranslationLanguage = "Telugu"
	}
	if cfg.Assistant.ContextMessages == 0 {
		cfg.Assistant.ContextMessages = 4
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Sessions.Path == "" {
		cfg.Sessions.Path = "./sessions.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
