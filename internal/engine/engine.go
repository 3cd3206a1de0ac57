// Package engine implements the Engine Facade: the single public contract
// surface wiring the registry, state store, event bus, builder, system KB
// loader, and retrieval planner behind one mutex.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ragforge/kbengine/internal/chunk"
	"github.com/ragforge/kbengine/internal/config"
	"github.com/ragforge/kbengine/internal/embedder"
	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/ragforge/kbengine/internal/eventbus"
	"github.com/ragforge/kbengine/internal/kb"
	"github.com/ragforge/kbengine/internal/retrieval"
	"github.com/ragforge/kbengine/internal/state"
	"github.com/ragforge/kbengine/internal/sysloader"
	"github.com/ragforge/kbengine/internal/vectorindex"
)

// Options configures a new Engine.
type Options struct {
	Config   config.Config
	Embedder embedder.Embedder
	Splitter chunk.Splitter
	Logger   *slog.Logger
}

// Engine is the facade. Registry, enabled, and mode are protected by mu;
// holders of mu never call the embedder or touch the filesystem — ingestion
// and persistence happen with mu released, following a
// prepare-then-commit pattern, and are re-serialized under a re-acquired
// critical section to commit their result. The event bus is engine-owned,
// not an external collaborator, so publishing happens inside the critical
// section that produced the event: this is what gives every listener the
// same global delivery order as the mutations themselves. Listeners must
// therefore never call back into the Engine synchronously.
type Engine struct {
	cfg      config.Config
	registry *kb.Registry
	store    *state.Store
	bus      *eventbus.Bus
	builder  *kb.Builder
	loader   *sysloader.Loader
	planner  *retrieval.Planner
	log      *slog.Logger

	mu      sync.Mutex
	enabled bool
	mode    state.Mode
}

// New constructs an Engine, loading persisted state and emitting
// engine.state_loaded.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	store := state.NewStore(opts.Config.StatePath, log)
	st := store.Load()

	registry := kb.NewRegistry()
	if st.ActiveName != "" {
		registry.SetActive(st.ActiveName)
	}

	builder := kb.NewBuilder(opts.Splitter, opts.Embedder, opts.Config.ChunkSize, opts.Config.ChunkOverlap)
	bus := eventbus.New(log)

	e := &Engine{
		cfg:      opts.Config,
		registry: registry,
		store:    store,
		bus:      bus,
		builder:  builder,
		planner:  retrieval.NewPlanner(opts.Embedder, log),
		log:      log,
		enabled:  st.Enabled,
		mode:     st.Mode,
	}
	e.loader = sysloader.New(opts.Config.KBDir, sysloader.DefaultScan(builder, log), log)

	bus.Publish(eventbus.Event{
		Type: eventbus.TypeStateLoaded,
		StateLoaded: &eventbus.StateLoaded{
			Enabled:    st.Enabled,
			Mode:       string(st.Mode),
			ActiveName: st.ActiveName,
		},
	})
	return e
}

// Subscribe registers a lifecycle event listener; see eventbus.Bus.Subscribe.
func (e *Engine) Subscribe(l eventbus.Listener) (cancel func()) {
	return e.bus.Subscribe(l)
}

// ListKBs returns every known knowledge base, system entries first.
func (e *Engine) ListKBs() []kb.Listed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.List()
}

// AddKB reads, chunks, embeds, and commits a new user KB. Ingestion runs
// with the mutex released; the ALREADY_EXISTS check is performed both
// before and after ingestion since a concurrent AddKB for the same name
// may commit first — first commit wins.
func (e *Engine) AddKB(ctx context.Context, path string) (*kb.Entry, error) {
	name := kb.NameFromPath(path)

	e.mu.Lock()
	if e.registry.HasUser(name) {
		e.mu.Unlock()
		return nil, ragerrors.AlreadyExists(name)
	}
	e.mu.Unlock()

	entry, err := e.builder.Ingest(ctx, path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.registry.HasUser(name) {
		e.mu.Unlock()
		return nil, ragerrors.AlreadyExists(name)
	}

	wasEmpty := e.registry.IsEmpty()
	e.registry.AddUser(entry)
	if wasEmpty {
		e.registry.SetActive(entry.Name)
	}

	e.bus.Publish(eventbus.Event{
		Type: eventbus.TypeKBAdded,
		KBAdded: &eventbus.KBAdded{
			Name:       entry.Name,
			Path:       entry.SourcePath,
			ChunkCount: entry.Index.ChunkCount(),
			Origin:     string(kb.OriginUser),
		},
	})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.persist(snap)
	return entry, nil
}

// RemoveKB deletes a knowledge base by name, user or system.
func (e *Engine) RemoveKB(name string) error {
	e.mu.Lock()
	if _, ok := e.registry.Remove(name); !ok {
		e.mu.Unlock()
		return ragerrors.NotFound(name)
	}

	e.bus.Publish(eventbus.Event{Type: eventbus.TypeKBRemoved, KBRemoved: &eventbus.KBRemoved{Name: name}})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.persist(snap)
	return nil
}

// SwitchKB marks name as the active KB for SINGLE-mode queries.
func (e *Engine) SwitchKB(name string) error {
	e.mu.Lock()
	entry, ok := e.registry.MergedEntry(name)
	if !ok || !e.registry.Switch(name) {
		e.mu.Unlock()
		return ragerrors.NotFound(name)
	}

	e.bus.Publish(eventbus.Event{Type: eventbus.TypeKBSwitched, KBSwitched: &eventbus.KBSwitched{Name: name, Path: entry.SourcePath}})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.persist(snap)
	return nil
}

// SetEnabled flips the engine's enabled flag. If enabling flips the engine
// on while mode is already MULTI, the lazy system KB load is triggered and
// this call blocks until it completes.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	old := e.enabled
	if old == enabled {
		e.mu.Unlock()
		return nil
	}
	e.enabled = enabled
	needsLoad := enabled && e.mode == state.Multi

	e.bus.Publish(eventbus.Event{Type: eventbus.TypeEnabledChanged, EnabledChanged: &eventbus.EnabledChanged{Old: old, New: enabled}})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.persist(snap)

	if needsLoad {
		return e.ensureSystemKBsLoaded(ctx)
	}
	return nil
}

// SetMode switches between SINGLE and MULTI query mode. Entering MULTI
// mode triggers the lazy system KB load and this call blocks until it
// completes.
func (e *Engine) SetMode(ctx context.Context, mode state.Mode) error {
	if mode != state.Single && mode != state.Multi {
		return ragerrors.InvalidArgument("mode must be single or multi")
	}

	e.mu.Lock()
	old := e.mode
	if old == mode {
		e.mu.Unlock()
		return nil
	}
	e.mode = mode

	e.bus.Publish(eventbus.Event{Type: eventbus.TypeModeChanged, ModeChanged: &eventbus.ModeChanged{Old: string(old), New: string(mode)}})
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.persist(snap)

	if mode == state.Multi {
		return e.ensureSystemKBsLoaded(ctx)
	}
	return nil
}

// Status reports the engine's current enabled flag, mode, active KB, and
// loaded-KB chunk totals.
type Status struct {
	Enabled      bool
	Mode         state.Mode
	ActiveName   string
	LoadedNames  []string
	TotalChunks  int
	ChunkSize    int
	ChunkOverlap int
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Enabled:      e.enabled,
		Mode:         e.mode,
		ActiveName:   e.registry.ActiveName(),
		LoadedNames:  e.registry.Names(),
		TotalChunks:  e.registry.TotalChunks(),
		ChunkSize:    e.cfg.ChunkSize,
		ChunkOverlap: e.cfg.ChunkOverlap,
	}
}

// QueryOptions carries the optional per-call mode override.
type QueryOptions struct {
	Mode *state.Mode
}

// Query answers a natural-language query against the active KB (SINGLE
// mode) or every loaded KB (MULTI mode). The merged view is snapshotted
// once under the mutex; the embedder call and per-KB search happen with
// the mutex released, against that frozen snapshot of immutable vector
// indexes.
func (e *Engine) Query(ctx context.Context, text string, opts QueryOptions) (*retrieval.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ragerrors.InvalidArgument("query text must not be empty")
	}

	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return nil, ragerrors.Disabled()
	}

	mode := e.mode
	if opts.Mode != nil {
		mode = *opts.Mode
	}

	switch mode {
	case state.Single:
		activeName := e.registry.ActiveName()
		entry, ok := e.registry.MergedEntry(activeName)
		if activeName == "" || !ok {
			e.mu.Unlock()
			return nil, ragerrors.NoActiveKB()
		}
		idx := entry.Index
		e.mu.Unlock()
		return e.planner.QuerySingle(ctx, text, activeName, idx, e.cfg.MaxRetrievedDocs, e.cfg.MinRelevanceScore)

	case state.Multi:
		names := e.registry.Names()
		if len(names) == 0 {
			e.mu.Unlock()
			return nil, ragerrors.NoKBLoaded()
		}
		targets := make(map[string]*vectorindex.Index, len(names))
		for _, n := range names {
			entry, _ := e.registry.MergedEntry(n)
			targets[n] = entry.Index
		}
		e.mu.Unlock()
		return e.planner.QueryMulti(ctx, text, names, targets, e.cfg.MaxRetrievedDocs, e.cfg.MinRelevanceScore)

	default:
		e.mu.Unlock()
		return nil, ragerrors.InvalidArgument("unknown mode")
	}
}

// ensureSystemKBsLoaded runs the one-shot system KB scan. The commit
// closure re-acquires the engine mutex to merge scanned entries into the
// registry, auto-activate if the registry was empty, publish
// system_kbs.loaded, and persist — all under the same lock discipline as
// every other mutation.
func (e *Engine) ensureSystemKBsLoaded(ctx context.Context) error {
	return e.loader.EnsureLoaded(ctx, func(entries []*kb.Entry) {
		e.mu.Lock()
		wasEmpty := e.registry.IsEmpty()
		added := 0
		for _, entry := range entries {
			if e.registry.AddSystem(entry) {
				added++
			}
		}
		if wasEmpty && added > 0 {
			names := e.registry.Names()
			e.registry.SetActive(names[0])
		}

		e.bus.Publish(eventbus.Event{Type: eventbus.TypeSystemKBsLoaded, SystemKBsLoaded: &eventbus.SystemKBsLoaded{Count: added}})
		snap := e.snapshotLocked()
		e.mu.Unlock()

		e.persist(snap)
	})
}

// snapshotLocked must be called with mu held. It captures the fields
// persisted to disk for a Save performed after mu is released.
func (e *Engine) snapshotLocked() state.State {
	return state.State{Enabled: e.enabled, Mode: e.mode, ActiveName: e.registry.ActiveName()}
}

// persist is best-effort: a failure is logged and never surfaces to the
// caller of the mutating operation that triggered it.
func (e *Engine) persist(st state.State) {
	if err := e.store.Save(st); err != nil {
		e.log.Warn("failed to persist engine state", "error", err)
	}
}
