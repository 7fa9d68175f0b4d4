package provider

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 32

// Pool turns a RawEmbedder into the full Embedder contract: texts are
// split into sub-batches and embedded concurrently through a bounded
// worker pool (default width DefaultConcurrency, per §5). A sub-batch
// that fails is binary-split and retried; an item that still fails
// alone is retried with progressively shorter truncations; an item
// that fails at every truncation gets a zero vector and is counted as
// a fallback.
type Pool struct {
	raw    RawEmbedder
	logger *slog.Logger
}

// NewPool wraps raw with the batching/retry machinery. A nil logger
// falls back to slog.Default().
func NewPool(raw RawEmbedder, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{raw: raw, logger: logger}
}

func (p *Pool) Info() Info {
	return Info{Name: p.raw.Name(), SupportsPrefixes: p.raw.SupportsPrefixes()}
}

func (p *Pool) HealthCheck(ctx context.Context) error { return p.raw.HealthCheck(ctx) }

func (p *Pool) ProbeDimension(ctx context.Context) (int, error) { return p.raw.ProbeDimension(ctx) }

// EmbedSingle embeds exactly one text, reusing EmbedBatch's retry and
// truncation ladder.
func (p *Pool) EmbedSingle(ctx context.Context, text string, prefix string) ([]float32, error) {
	vectors, _, err := p.EmbedBatch(ctx, []string{text}, BatchOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedBatch embeds texts, preserving input order in the output
// regardless of how sub-batches were split or retried.
func (p *Pool) EmbedBatch(ctx context.Context, texts []string, opts BatchOptions) ([][]float32, BatchReport, error) {
	if len(texts) == 0 {
		return nil, BatchReport{}, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([][]float32, len(texts))

	var (
		fallbacks   int
		fallbackMu  sync.Mutex
		completed   int
		completedMu sync.Mutex
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		start, end := start, end

		group.Go(func() error {
			embedded, fb := p.embedWithRetry(gctx, texts[start:end], opts.Prefix)
			copy(results[start:end], embedded)

			if fb > 0 {
				fallbackMu.Lock()
				fallbacks += fb
				fallbackMu.Unlock()
			}

			completedMu.Lock()
			completed++
			count := completed
			completedMu.Unlock()

			if opts.Verbose {
				p.logger.InfoContext(gctx, "embed batch completed", "batches_done", count, "batch_size", end-start)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, BatchReport{}, err
	}

	return results, BatchReport{FallbackCount: fallbacks}, nil
}

// embedWithRetry embeds a sub-batch, falling back to binary-split
// retry on failure. It never returns an error: a batch that cannot be
// embedded degrades to per-item truncation and ultimately zero
// vectors, per §5's "never return NaN, always degrade" contract.
func (p *Pool) embedWithRetry(ctx context.Context, texts []string, prefix string) ([][]float32, int) {
	vectors, err := p.raw.EmbedRaw(ctx, texts, prefix)
	if err == nil {
		return vectors, 0
	}

	if len(texts) == 1 {
		return p.embedSingleWithTruncation(ctx, texts[0], prefix)
	}

	mid := len(texts) / 2
	left, leftFallbacks := p.embedWithRetry(ctx, texts[:mid], prefix)
	right, rightFallbacks := p.embedWithRetry(ctx, texts[mid:], prefix)

	return append(left, right...), leftFallbacks + rightFallbacks
}

// embedSingleWithTruncation retries one item under progressively
// shorter character truncations, falling back to a zero vector whose
// width comes from ProbeDimension (1 if probing fails) when every
// truncation still fails.
func (p *Pool) embedSingleWithTruncation(ctx context.Context, text string, prefix string) ([][]float32, int) {
	for _, limit := range TruncationSteps {
		truncated := text
		if len(truncated) > limit {
			truncated = truncated[:limit]
		}

		vectors, err := p.raw.EmbedRaw(ctx, []string{truncated}, prefix)
		if err == nil {
			return vectors, 0
		}
	}

	dimension, err := p.raw.ProbeDimension(ctx)
	if err != nil || dimension <= 0 {
		dimension = 1
	}

	p.logger.WarnContext(ctx, "embedding fell back to zero vector", "provider", p.raw.Name())

	return [][]float32{make([]float32, dimension)}, 1
}
