// Package retrieval implements the Retrieval Planner: dispatch in SINGLE
// or MULTI mode, filter by threshold, merge, rank, and format the
// context block handed to the downstream LLM.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ragforge/kbengine/internal/embedder"
	ragerrors "github.com/ragforge/kbengine/internal/errors"
	"github.com/ragforge/kbengine/internal/vectorindex"
	"golang.org/x/sync/errgroup"
)

// Match is one ranked hit in a Query Result.
type Match struct {
	Content string
	Score   float64
	KBName  string
}

// Reference is the compact per-match summary carried in Metadata.
type Reference struct {
	ID      int
	Score   float64
	KB      string
	Excerpt string
}

// Metadata is the closed set of fields the chat layer may read.
type Metadata struct {
	MatchCount int
	KBSingle   *string
	KBMulti    []string
	References []Reference
}

// Result is the Query Result returned by the facade.
type Result struct {
	Context    string
	Documents  []Match
	Metadata   Metadata
}

// contextBlockFormat is frozen verbatim; the positions of i, kb_name,
// score, and content are part of the contract and must not move.
const contextBlockFormat = "\n引用 %d (知识库: %s, 相关度: %.1f%%):\n%s\n"

// Planner embeds the query and ranks matches. It holds no registry state —
// the caller (the engine facade) resolves which vector indexes to search
// under its mutex and hands them to Planner already snapshotted, so
// Planner's own methods never need to suspend on anything but the embedder
// and per-KB search.
type Planner struct {
	embedder embedder.Embedder
	log      *slog.Logger
}

// NewPlanner wires the embedding capability used to vectorize queries.
func NewPlanner(emb embedder.Embedder, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{embedder: emb, log: log}
}

// QuerySingle runs a SINGLE-mode query against one resolved index.
func (p *Planner) QuerySingle(ctx context.Context, text, kbName string, idx *vectorindex.Index, maxDocs int, minScore float64) (*Result, error) {
	queryVec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	raw, err := idx.TopK(queryVec, maxDocs)
	if err != nil {
		return nil, err
	}

	hits := make([]tagged, len(raw))
	for i, m := range raw {
		hits[i] = tagged{m, kbName}
	}

	single := kbName
	return buildResult(hits, maxDocs, minScore, &single, nil)
}

// QueryMulti runs a MULTI-mode query: embed once, fan out to every
// target in parallel, and merge. A per-KB search failure is logged and
// treated as an empty result for that KB; it never fails the whole query.
// names is a lexicographically-irrelevant snapshot order; it is preserved
// verbatim in Metadata.KBMulti.
func (p *Planner) QueryMulti(ctx context.Context, text string, names []string, targets map[string]*vectorindex.Index, maxDocs int, minScore float64) (*Result, error) {
	queryVec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []tagged
	)

	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		idx := targets[name]
		g.Go(func() error {
			matches, err := idx.TopK(queryVec, maxDocs)
			if err != nil {
				p.log.Warn("per-KB search failed during MULTI query, skipping", "kb", name, "error", err)
				return nil
			}
			mu.Lock()
			for _, m := range matches {
				all = append(all, tagged{m, name})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ragerrors.Cancelled(ctx.Err())
	}

	return buildResult(all, maxDocs, minScore, nil, names)
}

type tagged struct {
	vectorindex.Match
	KBName string
}

// buildResult applies the threshold, the shared sort/truncate rule, and the
// frozen context format to a flat set of tagged matches.
func buildResult(matches []tagged, maxDocs int, minScore float64, kbSingle *string, kbMulti []string) (*Result, error) {
	filtered := make([]tagged, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore {
			filtered = append(filtered, m)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].KBName != filtered[j].KBName {
			return filtered[i].KBName < filtered[j].KBName
		}
		return filtered[i].ChunkID < filtered[j].ChunkID
	})

	if len(filtered) > maxDocs {
		filtered = filtered[:maxDocs]
	}

	if len(filtered) == 0 {
		return nil, ragerrors.NoRelevantContent()
	}

	docs := make([]Match, len(filtered))
	refs := make([]Reference, len(filtered))
	var ctxBuilder []byte
	for i, m := range filtered {
		docs[i] = Match{Content: m.Content, Score: m.Score, KBName: m.KBName}
		refs[i] = Reference{ID: m.ChunkID, Score: m.Score, KB: m.KBName, Excerpt: m.Content}
		ctxBuilder = append(ctxBuilder, fmt.Sprintf(contextBlockFormat, i+1, m.KBName, m.Score*100, m.Content)...)
	}

	return &Result{
		Context:   string(ctxBuilder),
		Documents: docs,
		Metadata: Metadata{
			MatchCount: len(docs),
			KBSingle:   kbSingle,
			KBMulti:    kbMulti,
			References: refs,
		},
	}, nil
}
