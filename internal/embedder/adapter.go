package embedder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ragerrors "github.com/ragforge/kbengine/internal/errors"
)

const (
	DefaultBatchSize   = 512
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultEmbedTimeout = 60 * time.Second
)

// AdapterOption configures an Adapter, following the functional-options
// shape used throughout this codebase for component construction.
type AdapterOption func(*Adapter)

func WithBatchSize(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

func WithMaxRetries(n int) AdapterOption {
	return func(a *Adapter) { a.retry.MaxRetries = n }
}

func WithRetryDelay(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.retry.InitialDelay = d }
}

func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// Adapter is the Embedder Adapter: it wraps a raw Provider with batching,
// retry with exponential back-off, a per-call timeout, and dimension
// pinning, and unit-normalizes every vector it returns.
type Adapter struct {
	provider  Provider
	batchSize int
	retry     ragerrors.RetryConfig
	timeout   time.Duration
	log       *slog.Logger

	mu  sync.Mutex
	dim int // 0 until pinned by the first successful call
}

var _ Embedder = (*Adapter)(nil)

// NewAdapter wraps provider with the default retry/batching policy, overridable via opts.
func NewAdapter(provider Provider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider:  provider,
		batchSize: DefaultBatchSize,
		retry: ragerrors.RetryConfig{
			MaxRetries:   DefaultMaxRetries,
			InitialDelay: DefaultRetryDelay,
			MaxDelay:     4 * DefaultRetryDelay,
			Multiplier:   2,
		},
		timeout: DefaultEmbedTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dimensions returns the dimension pinned at the first successful call, or
// 0 if none has happened yet.
func (a *Adapter) Dimensions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dim
}

// Embed embeds a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, preserving order, chunking the request into
// batches of at most batchSize, retrying each batch independently, and
// unit-normalizing every returned vector. texts must be non-empty — the
// caller never passes an empty input.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += a.batchSize {
		end := start + a.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := a.embedOneBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vecs...)
	}
	return result, nil
}

func (a *Adapter) embedOneBatch(ctx context.Context, batch []string) ([][]float32, error) {
	fn := func() ([][]float32, error) {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.provider.EmbedBatch(cctx, batch)
	}

	vecs, err := ragerrors.RetryWithResult(ctx, a.retry, fn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ragerrors.Cancelled(ctx.Err())
		}
		return nil, ragerrors.EmbeddingFailed(err)
	}

	for i, v := range vecs {
		vecs[i] = normalize(v)
		if err := a.pinOrCheckDimension(len(vecs[i])); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (a *Adapter) pinOrCheckDimension(dim int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dim == 0 {
		a.dim = dim
		return nil
	}
	if a.dim != dim {
		return ragerrors.DimensionMismatch(a.dim, dim)
	}
	return nil
}
