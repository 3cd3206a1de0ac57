// Package vectorindex implements the in-memory, append-then-immutable
// vector store for a single knowledge base.
package vectorindex

import (
	"sort"

	ragerrors "github.com/ragforge/kbengine/internal/errors"
)

// Offset is an optional byte range into the origin document.
type Offset struct {
	Start int
	End   int
}

// Chunk is an immutable record: a piece of source text plus its embedding.
type Chunk struct {
	ID           int
	Content      string
	Embedding    []float32
	SourceOffset *Offset
}

// Match is one top_k hit: a chunk id, its normalized score, and the content
// needed to build the context block without a second lookup.
type Match struct {
	ChunkID int
	Score   float64
	Content string
}

// Index is an ordered, append-only-until-Freeze sequence of Chunks sharing
// one embedding dimension.
type Index struct {
	dim    int
	chunks []Chunk
	frozen bool
}

// New creates an empty index pinned to dim. dim is fixed by the first
// successful embedder call upstream; the index itself never infers it.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dimension returns the pinned embedding dimension.
func (idx *Index) Dimension() int { return idx.dim }

// ChunkCount returns the number of chunks currently stored.
func (idx *Index) ChunkCount() int { return len(idx.chunks) }

// Add appends a chunk. The embedding must already be unit-normalized and
// must match idx.Dimension(); callers (the KB Builder) are responsible for
// normalization via the Embedder Adapter.
func (idx *Index) Add(content string, embedding []float32, offset *Offset) (Chunk, error) {
	if idx.frozen {
		return Chunk{}, ragerrors.New(ragerrors.CodeInvalidArgument, "cannot append to a frozen index", nil)
	}
	if len(embedding) != idx.dim {
		return Chunk{}, ragerrors.DimensionMismatch(idx.dim, len(embedding))
	}
	c := Chunk{ID: len(idx.chunks), Content: content, Embedding: embedding, SourceOffset: offset}
	idx.chunks = append(idx.chunks, c)
	return c, nil
}

// Freeze marks the index immutable. Concurrent readers need no
// synchronization against a frozen index.
func (idx *Index) Freeze() { idx.frozen = true }

// TopK returns the k highest-scoring chunks for queryVec, which must already
// be unit-normalized. Score is the normalized cosine (1+dot)/2. Ties break
// on ascending chunk id. k is clamped to ChunkCount; an empty index returns
// an empty, non-nil-error sequence.
func (idx *Index) TopK(queryVec []float32, k int) ([]Match, error) {
	if len(idx.chunks) == 0 {
		return []Match{}, nil
	}
	if len(queryVec) != idx.dim {
		return nil, ragerrors.DimensionMismatch(idx.dim, len(queryVec))
	}
	if k > len(idx.chunks) {
		k = len(idx.chunks)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, len(idx.chunks))
	for i, c := range idx.chunks {
		dot := dotProduct(queryVec, c.Embedding)
		score := (1 + float64(dot)) / 2
		matches[i] = Match{ChunkID: c.ID, Score: score, Content: c.Content}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	return matches[:k], nil
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
