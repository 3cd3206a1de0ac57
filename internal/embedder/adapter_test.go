package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	failN    int
	dim      int
	dimByIdx map[int]int // override dimension for a specific call index
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.failN > 0 && call <= f.failN {
		return nil, errors.New("transient provider error")
	}

	dim := f.dim
	if d, ok := f.dimByIdx[call]; ok {
		dim = d
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func fastRetry() AdapterOption {
	return func(a *Adapter) {
		a.retry.InitialDelay = time.Millisecond
		a.retry.MaxDelay = 2 * time.Millisecond
	}
}

func TestAdapter_EmbedBatchNormalizesAndPinsDimension(t *testing.T) {
	p := &fakeProvider{dim: 4}
	a := NewAdapter(p, fastRetry())

	vecs, err := a.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 4, a.Dimensions())
	for _, v := range vecs {
		assert.InDelta(t, 1.0, float64(v[0]), 1e-6) // unit vector: only component is 1 -> normalized stays 1
	}
}

func TestAdapter_DimensionMismatchAfterPinIsFatal(t *testing.T) {
	p := &fakeProvider{dim: 4, dimByIdx: map[int]int{2: 8}}
	a := NewAdapter(p, fastRetry())

	_, err := a.Embed(context.Background(), "first")
	require.NoError(t, err)

	_, err = a.Embed(context.Background(), "second")
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeDimensionMismatch, ragerrors.Code(err))
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	p := &fakeProvider{dim: 2, failN: 2}
	a := NewAdapter(p, fastRetry(), WithMaxRetries(3))

	_, err := a.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestAdapter_ExhaustedRetriesReturnEmbeddingFailed(t *testing.T) {
	p := &fakeProvider{dim: 2, failN: 100}
	a := NewAdapter(p, fastRetry(), WithMaxRetries(1))

	_, err := a.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeEmbeddingFailed, ragerrors.Code(err))
}

func TestAdapter_ChunksIntoConfiguredBatchSize(t *testing.T) {
	p := &fakeProvider{dim: 2}
	a := NewAdapter(p, fastRetry(), WithBatchSize(2))

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := a.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, 3, p.calls) // batches of 2,2,1
}

func TestAdapter_CancelledContextSurfacesAsCancelled(t *testing.T) {
	p := &fakeProvider{dim: 2, failN: 100}
	a := NewAdapter(p, fastRetry(), WithMaxRetries(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Embed(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeCancelled, ragerrors.Code(err))
}
