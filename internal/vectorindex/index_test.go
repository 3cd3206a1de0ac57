package vectorindex

import (
	"math"
	"testing"

	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(v []float32) []float32 {
	var mag float64
	for _, x := range v {
		mag += float64(x) * float64(x)
	}
	if mag == 0 {
		return v
	}
	root := math.Sqrt(mag)
	for i := range v {
		v[i] = float32(float64(v[i]) / root)
	}
	return v
}

func TestIndex_EmptyIndexReturnsEmptySequence(t *testing.T) {
	idx := New(3)
	out, err := idx.TopK([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIndex_TopKClampsToChunkCount(t *testing.T) {
	idx := New(2)
	_, _ = idx.Add("a", unit([]float32{1, 0}), nil)
	_, _ = idx.Add("b", unit([]float32{0, 1}), nil)
	out, err := idx.TopK(unit([]float32{1, 0}), 10)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestIndex_TieBreaksOnAscendingChunkID(t *testing.T) {
	idx := New(2)
	v := unit([]float32{1, 1})
	_, _ = idx.Add("a", append([]float32{}, v...), nil)
	_, _ = idx.Add("b", append([]float32{}, v...), nil)
	out, err := idx.TopK(v, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].ChunkID)
	assert.Equal(t, 1, out[1].ChunkID)
}

func TestIndex_AddRejectsDimensionMismatch(t *testing.T) {
	idx := New(3)
	_, err := idx.Add("a", []float32{1, 0}, nil)
	require.Error(t, err)
	assert.Equal(t, ragerrors.CodeDimensionMismatch, ragerrors.Code(err))
}

func TestIndex_AddRejectsAfterFreeze(t *testing.T) {
	idx := New(2)
	idx.Freeze()
	_, err := idx.Add("a", []float32{1, 0}, nil)
	assert.Error(t, err)
}

func TestIndex_ScoreIsNormalizedCosine(t *testing.T) {
	idx := New(2)
	_, _ = idx.Add("a", unit([]float32{1, 0}), nil)
	out, err := idx.TopK(unit([]float32{1, 0}), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].Score, 1e-6)
}

func TestIndex_ScoreMapsCosine091To0955(t *testing.T) {
	idx := New(1)
	_, _ = idx.Add("a", []float32{0.91}, nil)
	out, err := idx.TopK([]float32{1}, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.955, out[0].Score, 1e-6)
}

func TestIndex_HigherCosineRanksAboveLowerCosine(t *testing.T) {
	idx := New(1)
	_, _ = idx.Add("low", []float32{0.72}, nil)
	_, _ = idx.Add("high", []float32{0.88}, nil)
	out, err := idx.TopK([]float32{1}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].Content)
	assert.InDelta(t, 0.94, out[0].Score, 1e-6)
	assert.Equal(t, "low", out[1].Content)
	assert.InDelta(t, 0.86, out[1].Score, 1e-6)
}
