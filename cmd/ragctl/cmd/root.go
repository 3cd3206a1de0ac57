// Package cmd provides the CLI commands for ragctl.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragforge/kbengine/internal/chunk"
	"github.com/ragforge/kbengine/internal/config"
	"github.com/ragforge/kbengine/internal/embedder"
	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/pkg/version"
)

var (
	configPath  string
	offline     bool
	ollamaHost  string
	ollamaModel string
	cacheSize   int
)

// NewRootCmd creates the root command for the ragctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "Operate a knowledge-base retrieval engine",
		Long: `ragctl manages and queries a retrieval-augmented generation
knowledge base engine: add, remove, switch, and query text corpora from
the command line.`,
		Version:      version.String(),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file overlaying the defaults")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "use the deterministic offline embedder instead of Ollama")
	cmd.PersistentFlags().StringVar(&ollamaHost, "ollama-host", embedder.DefaultOllamaHost, "Ollama server base URL")
	cmd.PersistentFlags().StringVar(&ollamaModel, "ollama-model", "nomic-embed-text", "Ollama embedding model name")
	cmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "number of embeddings to cache in memory; 0 disables caching")

	cmd.AddCommand(
		newListCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newSwitchCmd(),
		newStatusCmd(),
		newModeCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newQueryCmd(),
	)

	return cmd
}

// Execute runs the ragctl CLI, returning a non-nil error on failure.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildEngine is the CLI's composition root: it loads configuration,
// selects the embedding provider, and wires a fresh Engine facade.
func buildEngine() (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var provider embedder.Provider
	if offline {
		provider = embedder.NewStaticProvider()
	} else {
		provider = embedder.NewOllamaProvider(ollamaHost, ollamaModel)
	}

	adapter := embedder.NewAdapter(provider,
		embedder.WithMaxRetries(cfg.MaxRetries),
		embedder.WithRetryDelay(time.Duration(cfg.RetryDelayMS)*time.Millisecond),
		embedder.WithTimeout(time.Duration(cfg.EmbedTimeoutMS)*time.Millisecond),
	)

	var emb embedder.Embedder = adapter
	if cacheSize > 0 {
		cached, err := embedder.NewCachedEmbedder(adapter, cacheSize)
		if err != nil {
			return nil, fmt.Errorf("constructing embedding cache: %w", err)
		}
		emb = cached
	}

	eng := engine.New(engine.Options{
		Config:   cfg,
		Embedder: emb,
		Splitter: chunk.NewRecursiveSplitter(),
	})
	return eng, nil
}
