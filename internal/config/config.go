package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadsDir  string `yaml:"uploads_dir"`
	AudioDir    string `yaml:"audio_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type RAGConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	TopK             int `yaml:"top_k"`
	MaxSummaryChunks int `yaml:"max_summary_chunks"`
}

// LLMConfig configures one OpenAI- or Ollama-compatible service endpoint.
// The API key is resolved from the environment variable named by KeyEnv.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	KeyEnv   string `yaml:"key_env"`
	Model    string `yaml:"model"`
	Key      string `yaml:"-"`
}

type SpeechConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	KeyEnv  string `yaml:"key_env"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
	Key     string `yaml:"-"`
}

type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env"`
	Debug       bool   `yaml:"debug"`
	Password    string `yaml:"-"`
}

// IndexConfig selects the vector index backend: "chromem" (embedded, persisted
// under Path, one directory per session) or "postgres" (pgvector via bun).
type IndexConfig struct {
	Backend  string         `yaml:"backend"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type Config struct {
	Server    ServerConfig `yaml:"server"`
	RAG       RAGConfig    `yaml:"rag"`
	Embedding LLMConfig    `yaml:"embedding"`
	LLM       LLMConfig    `yaml:"llm"`
	Speech    SpeechConfig `yaml:"speech"`
	Index     IndexConfig  `yaml:"index"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	ApplyDefaults(&cfg)
	resolveKeys(&cfg)
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.UploadsDir == "" {
		cfg.Server.UploadsDir = "./uploads"
	}
	if cfg.Server.AudioDir == "" {
		cfg.Server.AudioDir = "./audio"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap <= 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.MaxSummaryChunks <= 0 {
		cfg.RAG.MaxSummaryChunks = 40
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "chromem"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./vectorstore"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "alloy"
	}
}

func resolveKeys(cfg *Config) {
	if cfg.Embedding.KeyEnv != "" {
		cfg.Embedding.Key = os.Getenv(cfg.Embedding.KeyEnv)
	}
	if cfg.LLM.KeyEnv != "" {
		cfg.LLM.Key = os.Getenv(cfg.LLM.KeyEnv)
	}
	if cfg.Speech.KeyEnv != "" {
		cfg.Speech.Key = os.Getenv(cfg.Speech.KeyEnv)
	}
	if cfg.Index.Postgres.PasswordEnv != "" {
		cfg.Index.Postgres.Password = os.Getenv(cfg.Index.Postgres.PasswordEnv)
	}
}
