// Package provider defines the embedding provider contract and the
// bounded worker pool that batches and retries calls against it.
package provider

import "context"

// DefaultConcurrency is the worker-pool width used when BatchOptions
// does not specify one.
const DefaultConcurrency = 3

// TruncationSteps are the progressive character limits applied to a
// single item that keeps failing, in order.
var TruncationSteps = []int{8000, 4000, 2000, 500}

// BatchOptions configures a single EmbedBatch call. Zero values mean
// "use the provider/pool default" for every field.
type BatchOptions struct {
	BatchSize     int
	MaxBatchChars int
	Dimension     int
	Verbose       bool
	Prefix        string
	Concurrency   int
}

// BatchReport carries per-run telemetry that embed_batch must surface
// alongside its results: how many items fell all the way back to a
// zero vector.
type BatchReport struct {
	FallbackCount int
}

// Info identifies a provider and what it supports.
type Info struct {
	Name             string
	SupportsPrefixes bool
}

// Embedder is the external contract a text-embedding backend exposes.
// Implementations are expected to be safe for concurrent use; Pool
// calls EmbedRaw from multiple goroutines.
type Embedder interface {
	Info() Info
	HealthCheck(ctx context.Context) error
	ProbeDimension(ctx context.Context) (int, error)
	EmbedBatch(ctx context.Context, texts []string, opts BatchOptions) ([][]float32, BatchReport, error)
	EmbedSingle(ctx context.Context, text string, prefix string) ([]float32, error)
}

// RawEmbedder is the minimal seam a concrete backend (an HTTP call to
// an embedding API, for example) must implement. Pool wraps a
// RawEmbedder and supplies batching, concurrency, retry, truncation
// and zero-vector fallback on top of it.
type RawEmbedder interface {
	Name() string
	SupportsPrefixes() bool
	HealthCheck(ctx context.Context) error
	ProbeDimension(ctx context.Context) (int, error)
	// EmbedRaw embeds texts in the given order with no retry or
	// splitting; a failure on any item fails the whole call.
	EmbedRaw(ctx context.Context, texts []string, prefix string) ([][]float32, error)
}
