// Package sysloader implements the one-shot lazy System KB Loader.
package sysloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ragforge/kbengine/internal/kb"
	"golang.org/x/sync/singleflight"
)

const loadKey = "system-kbs"

// ScanFunc discovers and ingests every .txt file in a directory, returning
// one Entry per successfully ingested file. Per-file failures must be
// logged and swallowed, never aborting the scan of the remaining files.
type ScanFunc func(ctx context.Context, dir string) ([]*kb.Entry, error)

// Loader guards the scan with a "loading"/"loaded" flag pair, implemented
// via golang.org/x/sync/singleflight so that callers arriving while a load
// is already in flight wait for its result instead of starting a second
// scan.
type Loader struct {
	dir    string
	scan   ScanFunc
	log    *slog.Logger
	sf     singleflight.Group
	mu     sync.Mutex
	loaded bool
}

// New builds a Loader over dir using scan to do the actual file discovery
// and ingestion.
func New(dir string, scan ScanFunc, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{dir: dir, scan: scan, log: log}
}

// Loaded reports whether the one-shot scan has already completed
// successfully.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// EnsureLoaded runs the scan until it succeeds once; after a successful
// scan, later calls return without scanning. A scan that returns an error
// leaves the loader not loaded, so the next call scans again. Concurrent
// callers collapse into a single scan and all observe its result. On success, commit is invoked exactly once, with the freshly
// scanned entries, before EnsureLoaded marks the loader as loaded; commit
// is responsible for committing those entries into the registry under the
// engine mutex and for emitting system_kbs.loaded.
func (l *Loader) EnsureLoaded(ctx context.Context, commit func([]*kb.Entry)) error {
	_, err, _ := l.sf.Do(loadKey, func() (any, error) {
		if l.Loaded() {
			return nil, nil
		}

		entries, err := l.scan(ctx, l.dir)
		if err != nil {
			return nil, err
		}

		commit(entries)

		l.mu.Lock()
		l.loaded = true
		l.mu.Unlock()
		return nil, nil
	})
	return err
}

// DefaultScan lists dir (creating it if absent), ingests every *.txt file
// it finds (subdirectories and non-.txt files ignored, symlinks followed)
// via builder, and returns one Entry per success. A
// per-file failure is logged and does not abort the remaining files.
func DefaultScan(builder *kb.Builder, log *slog.Logger) ScanFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, dir string) ([]*kb.Entry, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}

		infos, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		var names []string
		for _, info := range infos {
			if info.IsDir() {
				continue
			}
			if filepath.Ext(info.Name()) != ".txt" {
				continue
			}
			names = append(names, info.Name())
		}
		sort.Strings(names)

		var entries []*kb.Entry
		for _, name := range names {
			path := filepath.Join(dir, name)
			entry, err := builder.Ingest(ctx, path)
			if err != nil {
				log.Warn("system KB ingestion failed, skipping", "path", path, "error", err)
				continue
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}
}
