// Package fake provides a deterministic provider.RawEmbedder test
// double. It is not a production provider: it hashes input text into a
// fixed-dimension vector instead of calling a real embedding backend.
package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// Embedder is a deterministic provider.RawEmbedder: EmbedRaw derives a
// vector from each text's FNV hash so the same input always embeds to
// the same output, with no network calls.
type Embedder struct {
	Dimension int

	mu       sync.Mutex
	FailNext map[string]int // text -> remaining failures before success
	calls    []int          // batch sizes seen, for assertions
}

// New returns a fake embedder with the given dimension.
func New(dimension int) *Embedder {
	return &Embedder{Dimension: dimension, FailNext: map[string]int{}}
}

func (e *Embedder) Name() string { return "fake" }

func (e *Embedder) SupportsPrefixes() bool { return true }

func (e *Embedder) HealthCheck(_ context.Context) error { return nil }

func (e *Embedder) ProbeDimension(_ context.Context) (int, error) { return e.Dimension, nil }

// Calls returns the batch sizes EmbedRaw was invoked with, in call
// order, for assertions on how a Pool split and retried batches.
func (e *Embedder) Calls() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]int, len(e.calls))
	copy(out, e.calls)

	return out
}

// FailAlways marks text to fail every EmbedRaw call it appears in,
// simulating a permanently-broken item for truncation/fallback tests.
func (e *Embedder) FailAlways(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.FailNext[text] = -1
}

// FailTimes marks text to fail the next n EmbedRaw calls it appears
// in, then succeed, simulating a transient backend error.
func (e *Embedder) FailTimes(text string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.FailNext[text] = n
}

func (e *Embedder) EmbedRaw(_ context.Context, texts []string, prefix string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, len(texts))

	for _, text := range texts {
		remaining, marked := e.FailNext[text]
		if !marked || remaining == 0 {
			continue
		}

		if remaining > 0 {
			e.FailNext[text] = remaining - 1
		}

		e.mu.Unlock()

		return nil, fmt.Errorf("fake: forced failure embedding %q", text)
	}
	e.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vectorFor(prefix + text)
	}

	return vectors, nil
}

func (e *Embedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, e.Dimension)
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		vector[i] = float32(seed>>40) / float32(1<<24)
	}

	return vector
}
