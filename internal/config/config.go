// Package config loads the engine's configuration surface from an
// optional YAML file layered over hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the recognized configuration surface of the retrieval engine.
type Config struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	MaxRetrievedDocs  int    `yaml:"max_retrieved_docs"`
	MinRelevanceScore float64 `yaml:"min_relevance_score"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelayMS      int    `yaml:"retry_delay_ms"`
	EmbedTimeoutMS    int    `yaml:"embed_timeout_ms"`
	KBDir             string `yaml:"kb_dir"`
	StatePath         string `yaml:"state_path"`
}

// Default returns the configuration defaults, rooted at cwd.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		MaxRetrievedDocs:  5,
		MinRelevanceScore: 0.7,
		MaxRetries:        3,
		RetryDelayMS:      5000,
		EmbedTimeoutMS:    60000,
		KBDir:             filepath.Join(cwd, "docs"),
		StatePath:         filepath.Join(cwd, "rag-state.json"),
	}
}

// Load reads path (if it exists) and overlays it on Default(). A missing
// file is not an error; a malformed file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate enforces the documented range constraints: chunk_overlap in
// [0, chunk_size) and min_relevance_score in [0,1].
func (c Config) Validate() error {
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be in [0, chunk_size) (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MinRelevanceScore < 0 || c.MinRelevanceScore > 1 {
		return fmt.Errorf("min_relevance_score (%v) must be in [0,1]", c.MinRelevanceScore)
	}
	return nil
}
