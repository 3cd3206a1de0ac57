// Package embedder wraps the external embedding capability with the
// batching, retry, timeout, and dimension-pinning policy required of the
// Embedder Adapter.
package embedder

import (
	"context"
	"math"
)

// Provider is the raw capability consumed from the embedding collaborator:
// given a non-empty batch of texts, return one vector per text, in order.
// Providers do not batch, retry, time out, or normalize — Adapter does all
// of that on top.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder is the richer capability the rest of the engine depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
