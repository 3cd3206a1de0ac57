package embedder

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticDimensions is the vector length produced by StaticProvider.
const StaticDimensions = 256

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// StaticProvider is a deterministic, dependency-free hash-based embedder.
// It is used in tests and as an offline fallback when no real embedding
// service is configured; semantic quality is low by construction, but
// identical text always produces an identical vector.
type StaticProvider struct{}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider() *StaticProvider { return &StaticProvider{} }

func (p *StaticProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t)
	}
	return out, nil
}

func hashEmbed(text string) []float32 {
	v := make([]float32, StaticDimensions)
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[int(h.Sum32())%StaticDimensions] += 1
	}
	if allZero(v) {
		v[0] = 1 // guard against the empty-token-stream case; never unit-zero
	}
	return v
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
