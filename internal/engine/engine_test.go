package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ragforge/kbengine/internal/chunk"
	"github.com/ragforge/kbengine/internal/config"
	"github.com/ragforge/kbengine/internal/embedder"
	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/ragforge/kbengine/internal/eventbus"
	"github.com/ragforge/kbengine/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.KBDir = filepath.Join(dir, "docs")
	cfg.StatePath = filepath.Join(dir, "rag-state.json")

	e := New(Options{
		Config:   cfg,
		Embedder: embedder.NewAdapter(embedder.NewStaticProvider()),
		Splitter: chunk.NewRecursiveSplitter(),
	})
	return e, cfg
}

func writeKB(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEngine_Query_EmptyTextIsInvalidArgument(t *testing.T) {
	// Given: a freshly constructed engine
	e, _ := newTestEngine(t)

	// When: querying with whitespace-only text
	_, err := e.Query(context.Background(), "   ", QueryOptions{})

	// Then: INVALID_ARGUMENT, no embedder call needed to observe this
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeInvalidArgument, ragerrors.Code(err))
}

func TestEngine_Query_DisabledEngineRejectsBeforeEmbedding(t *testing.T) {
	// Given: a state file with enabled=false
	dir := t.TempDir()
	statePath := filepath.Join(dir, "rag-state.json")
	raw, _ := json.Marshal(state.State{Enabled: false, Mode: state.Multi, ActiveName: ""})
	require.NoError(t, os.WriteFile(statePath, raw, 0o644))

	cfg := config.Default()
	cfg.StatePath = statePath
	cfg.KBDir = filepath.Join(dir, "docs")

	counting := &countingEmbedder{inner: embedder.NewAdapter(embedder.NewStaticProvider())}
	e := New(Options{Config: cfg, Embedder: counting, Splitter: chunk.NewRecursiveSplitter()})

	// When: querying
	_, err := e.Query(context.Background(), "hi", QueryOptions{})

	// Then: DISABLED, and the embedder observed zero invocations
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeDisabled, ragerrors.Code(err))
	assert.Equal(t, 0, counting.calls)
}

func TestEngine_Query_SingleModeNoActiveKB(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Query(context.Background(), "hello", QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeNoActiveKB, ragerrors.Code(err))
}

func TestEngine_AddKB_FirstEntryAutoActivates(t *testing.T) {
	// Given: an empty engine and a single document
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path := writeKB(t, dir, "agent-article", "Agents are autonomous programs that plan, act, and observe.")

	// When: adding it
	entry, err := e.AddKB(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "agent-article", entry.Name)

	// Then: it becomes active automatically (registry was empty)
	st := e.Status()
	assert.Equal(t, "agent-article", st.ActiveName)
}

func TestEngine_AddKB_DuplicateReturnsAlreadyExists(t *testing.T) {
	// Given: adding the same path twice
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path := writeKB(t, dir, "x", "some content")

	_, err := e.AddKB(context.Background(), path)
	require.NoError(t, err)
	before := e.ListKBs()

	_, err = e.AddKB(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeAlreadyExists, ragerrors.Code(err))

	after := e.ListKBs()
	assert.Equal(t, before, after)
}

func TestEngine_AddKB_RemoveKB_RestoresPriorState(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path := writeKB(t, dir, "x", "some content")
	before := e.ListKBs()

	_, err := e.AddKB(context.Background(), path)
	require.NoError(t, err)

	err = e.RemoveKB("x")
	require.NoError(t, err)

	after := e.ListKBs()
	assert.Equal(t, before, after)
}

func TestEngine_RemoveKB_UnknownNameIsNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.RemoveKB("nope")
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeNotFound, ragerrors.Code(err))
}

func TestEngine_SwitchKB_ThenStatusReflectsActiveName(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path1 := writeKB(t, dir, "a", "alpha content")
	path2 := writeKB(t, dir, "b", "beta content")

	_, err := e.AddKB(context.Background(), path1)
	require.NoError(t, err)
	_, err = e.AddKB(context.Background(), path2)
	require.NoError(t, err)

	require.NoError(t, e.SwitchKB("b"))
	assert.Equal(t, "b", e.Status().ActiveName)
}

func TestEngine_SwitchKB_TwiceEmitsOneEventEachWithSamePostState(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path := writeKB(t, dir, "a", "alpha content")
	_, err := e.AddKB(context.Background(), path)
	require.NoError(t, err)

	var switchedCount int
	e.Subscribe(func(evt eventbus.Event) {
		if evt.Type == eventbus.TypeKBSwitched {
			switchedCount++
		}
	})

	require.NoError(t, e.SwitchKB("a"))
	first := e.Status()
	require.NoError(t, e.SwitchKB("a"))
	second := e.Status()

	assert.Equal(t, first, second)
	assert.Equal(t, 2, switchedCount)
}

func TestEngine_Query_SingleModeOnlyReturnsActiveKBMatches(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	path := writeKB(t, dir, "agent-article", "Agents are autonomous programs that plan, act, and observe.")
	_, err := e.AddKB(context.Background(), path)
	require.NoError(t, err)

	res, err := e.Query(context.Background(), "Agents are autonomous programs that plan, act, and observe.", QueryOptions{})
	require.NoError(t, err)
	for _, m := range res.Documents {
		assert.Equal(t, "agent-article", m.KBName)
	}
}

func TestEngine_StatePersistedThenReloadedIsBitwiseEqual(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StatePath = filepath.Join(dir, "rag-state.json")
	cfg.KBDir = filepath.Join(dir, "docs")

	e1 := New(Options{Config: cfg, Embedder: embedder.NewAdapter(embedder.NewStaticProvider()), Splitter: chunk.NewRecursiveSplitter()})
	require.NoError(t, e1.SetMode(context.Background(), state.Single))
	require.NoError(t, e1.SetEnabled(context.Background(), false))

	e2 := New(Options{Config: cfg, Embedder: embedder.NewAdapter(embedder.NewStaticProvider()), Splitter: chunk.NewRecursiveSplitter()})
	assert.Equal(t, e1.Status().Enabled, e2.Status().Enabled)
	assert.Equal(t, e1.Status().Mode, e2.Status().Mode)
	assert.Equal(t, e1.Status().ActiveName, e2.Status().ActiveName)
}

func TestEngine_SetMode_MultiTriggersSystemKBLoadAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StatePath = filepath.Join(dir, "rag-state.json")
	cfg.KBDir = filepath.Join(dir, "docs")
	writeKB(t, cfg.KBDir, "seeded", "seeded content")

	e := New(Options{Config: cfg, Embedder: embedder.NewAdapter(embedder.NewStaticProvider()), Splitter: chunk.NewRecursiveSplitter()})

	var loadedEvents int
	e.Subscribe(func(evt eventbus.Event) {
		if evt.Type == eventbus.TypeSystemKBsLoaded {
			loadedEvents++
		}
	})

	require.NoError(t, e.SetMode(context.Background(), state.Multi))
	require.NoError(t, e.SetMode(context.Background(), state.Single))
	require.NoError(t, e.SetMode(context.Background(), state.Multi))

	assert.LessOrEqual(t, loadedEvents, 1)
	assert.Contains(t, e.Status().LoadedNames, "seeded")
}

type countingEmbedder struct {
	inner embedder.Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}
func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.inner.EmbedBatch(ctx, texts)
}
func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
