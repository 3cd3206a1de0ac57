// Package main starts the retrieval engine's MCP server over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ragforge/kbengine/internal/chunk"
	"github.com/ragforge/kbengine/internal/config"
	"github.com/ragforge/kbengine/internal/embedder"
	"github.com/ragforge/kbengine/internal/engine"
	"github.com/ragforge/kbengine/internal/logging"
	"github.com/ragforge/kbengine/internal/mcpserver"
	"github.com/ragforge/kbengine/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		offline     bool
		ollamaHost  string
		ollamaModel string
		logLevel    string
		logFile     string
		cacheSize   int
	)

	pflag.StringVar(&configPath, "config", "", "path to a YAML config file overlaying the defaults")
	pflag.BoolVar(&offline, "offline", false, "use the deterministic offline embedder instead of Ollama")
	pflag.StringVar(&ollamaHost, "ollama-host", embedder.DefaultOllamaHost, "Ollama server base URL")
	pflag.StringVar(&ollamaModel, "ollama-model", "nomic-embed-text", "Ollama embedding model name")
	pflag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pflag.StringVar(&logFile, "log-file", "", "path to a log file; stderr if empty")
	pflag.IntVar(&cacheSize, "cache-size", 0, "number of embeddings to cache in memory; 0 disables caching")
	pflag.Parse()

	log, cleanup, err := logging.Setup(logging.Config{Level: logLevel, FilePath: logFile, WriteToStderr: logFile == ""})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer cleanup()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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
		embedder.WithLogger(log),
	)

	var emb embedder.Embedder = adapter
	if cacheSize > 0 {
		cached, err := embedder.NewCachedEmbedder(adapter, cacheSize)
		if err != nil {
			return fmt.Errorf("constructing embedding cache: %w", err)
		}
		emb = cached
	}

	eng := engine.New(engine.Options{
		Config:   cfg,
		Embedder: emb,
		Splitter: chunk.NewRecursiveSplitter(),
		Logger:   log,
	})

	srv := mcpserver.NewServer(eng, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("ragmcpd starting", "version", version.Short(), "offline", offline, "kb_dir", cfg.KBDir)
	return srv.Serve(ctx)
}
