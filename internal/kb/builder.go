package kb

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ragforge/kbengine/internal/chunk"
	"github.com/ragforge/kbengine/internal/embedder"
	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/ragforge/kbengine/internal/vectorindex"
)

// Builder performs end-to-end ingestion: read file -> chunk -> embed batch
// -> assemble Vector Index. It holds no mutable state and is safe for
// concurrent use — parallel add_kb calls proceed independently up to the
// registry commit.
type Builder struct {
	splitter     chunk.Splitter
	embedder     embedder.Embedder
	chunkSize    int
	chunkOverlap int
}

// NewBuilder wires the Splitter and Embedder capabilities with the
// configured chunk size/overlap.
func NewBuilder(splitter chunk.Splitter, emb embedder.Embedder, chunkSize, chunkOverlap int) *Builder {
	return &Builder{splitter: splitter, embedder: emb, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Ingest reads path, splits it, embeds every piece in one batch call, and
// returns a fully-built, frozen Entry. It does not touch the registry —
// the facade commits under its mutex in a prepare-then-commit pattern.
func (b *Builder) Ingest(ctx context.Context, path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerrors.IOError("reading knowledge base file", err)
	}

	name := NameFromPath(path)
	pieces := splitWithOffsets(b.splitter, string(data), b.chunkSize, b.chunkOverlap)
	if len(pieces) == 0 {
		idx := vectorindex.New(b.embedder.Dimensions())
		idx.Freeze()
		return &Entry{Name: name, SourcePath: path, Index: idx}, nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	idx := vectorindex.New(len(vecs[0]))
	for i, v := range vecs {
		off := &vectorindex.Offset{Start: pieces[i].Start, End: pieces[i].End}
		if _, err := idx.Add(pieces[i].Content, v, off); err != nil {
			return nil, err
		}
	}
	idx.Freeze()

	return &Entry{Name: name, SourcePath: path, Index: idx}, nil
}

// NameFromPath derives a KB name from a file path: basename without extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitWithOffsets uses the offset-aware path when the configured Splitter
// is the shipped RecursiveSplitter, falling back to locating each plain
// string result sequentially for any other Splitter implementation.
func splitWithOffsets(s chunk.Splitter, text string, size, overlap int) []chunk.Piece {
	if rs, ok := s.(*chunk.RecursiveSplitter); ok {
		return rs.SplitWithOffsets(text, size, overlap)
	}

	parts := s.Split(text, size, overlap)
	pieces := make([]chunk.Piece, 0, len(parts))
	cursor := 0
	for _, part := range parts {
		idx := strings.Index(text[cursor:], part)
		start := cursor
		if idx >= 0 {
			start = cursor + idx
		}
		end := start + len(part)
		pieces = append(pieces, chunk.Piece{Content: part, Start: start, End: end})
		cursor = end
	}
	return pieces
}
