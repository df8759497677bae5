package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
		MaxConns         int32  `yaml:"max_conns"`
	} `yaml:"database"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Embeddings struct {
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		Dimensions int    `yaml:"dimensions"`
	} `yaml:"embeddings"`
	Gateway struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"gateway"`
	Memory struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"memory"`
	Vector struct {
		// Backend selects the vector index implementation:
		// "pgvector" (shares the Postgres pool) or "chromem" (embedded).
		Backend string `yaml:"backend"`
	} `yaml:"vector"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		TopK         int `yaml:"top_k"`
		MemoryLimit  int `yaml:"memory_limit"`
	} `yaml:"processing"`
}

// Load loads configuration from file or returns defaults.
// Secrets and the database URL may be overridden via environment variables
// (RECALL_DATABASE_URL, RECALL_GATEWAY_API_KEY, RECALL_MEMORY_API_KEY).
func Load() (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".recall", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables when set.
func (c *Config) applyEnv() {
	if v := os.Getenv("RECALL_DATABASE_URL"); v != "" {
		c.Database.ConnectionString = v
	}
	if v := os.Getenv("RECALL_GATEWAY_API_KEY"); v != "" {
		c.Gateway.APIKey = v
	}
	if v := os.Getenv("RECALL_MEMORY_API_KEY"); v != "" {
		c.Memory.APIKey = v
	}
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.MaxConns = 10
	cfg.Server.Addr = ":8080"
	cfg.Embeddings.BaseURL = "http://localhost:11434"
	cfg.Embeddings.Model = "nomic-embed-text"
	cfg.Embeddings.Dimensions = 768
	cfg.Gateway.BaseURL = "https://ai-gateway.vercel.sh/v1"
	cfg.Memory.BaseURL = "https://api.mem0.ai"
	cfg.Vector.Backend = "pgvector"
	cfg.Processing.ChunkSize = 1000
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 4
	cfg.Processing.MemoryLimit = 5

	return cfg
}
