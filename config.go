package insightgraph

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the insight graph engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.insightgraph/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "insightgraph".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses
	// ~/.insightgraph/, "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers. Either may be left unconfigured: extraction then
	// falls back to keyword heuristics and similarity to lexical
	// matching, so the engine keeps working without any model access.
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// EmbedCacheSize bounds the process-wide embedding LRU cache.
	EmbedCacheSize int `json:"embed_cache_size" yaml:"embed_cache_size"`

	// SkipRelationInference disables the relation inference LLM call
	// during ingestion; nodes are still extracted and deduplicated.
	SkipRelationInference bool `json:"skip_relation_inference" yaml:"skip_relation_inference"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference. Database is stored in ~/.insightgraph/insightgraph.db.
func DefaultConfig() Config {
	return Config{
		DBName:     "insightgraph",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:   768,
		EmbedCacheSize: 2048,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "insightgraph"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".insightgraph", name+".db")
	}
}
