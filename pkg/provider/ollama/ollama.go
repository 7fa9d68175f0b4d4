// Package ollama provides the only concrete provider.RawEmbedder this
// module ships: a thin client against a local Ollama embeddings
// endpoint. The HTTP call itself is foreign to the library's contract
// (pkg/provider only promises the Embedder interface and the pool that
// drives it); this package exists so cmd/cortexd has something real to
// wire in without reaching for an external SDK.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultURL     = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
	defaultTimeout = 30 * time.Second
)

// Embedder is a provider.RawEmbedder backed by Ollama's /api/embeddings
// endpoint. It embeds one text per request; EmbedRaw loops over the
// batch sequentially since Ollama has no native batch endpoint.
type Embedder struct {
	url    string
	model  string
	client *http.Client
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithURL overrides the Ollama base URL.
func WithURL(url string) Option {
	return func(e *Embedder) { e.url = url }
}

// WithModel overrides the embedding model name.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithHTTPClient overrides the underlying http.Client, e.g. for
// custom timeouts or transport-level tracing.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) { e.client = client }
}

// New returns an Embedder pointed at the given options, defaulting to
// a local Ollama instance running nomic-embed-text.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		url:    defaultURL,
		model:  defaultModel,
		client: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name identifies this provider as "ollama:<model>".
func (e *Embedder) Name() string { return fmt.Sprintf("ollama:%s", e.model) }

// SupportsPrefixes reports false: Ollama's embeddings endpoint has no
// notion of a document/query prefix distinction.
func (e *Embedder) SupportsPrefixes() bool { return false }

// HealthCheck embeds a short fixed probe text to confirm the endpoint is
// reachable and the model is loaded.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.embedOne(ctx, "health check")
	return err
}

// ProbeDimension embeds a short fixed probe text and reports the length
// of the returned vector.
func (e *Embedder) ProbeDimension(ctx context.Context) (int, error) {
	vec, err := e.embedOne(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}

	return len(vec), nil
}

// EmbedRaw embeds texts in order with no retry or splitting; a
// failure on any item fails the whole call. provider.Pool supplies
// retry and truncation on top of this.
func (e *Embedder) EmbedRaw(ctx context.Context, texts []string, prefix string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, text := range texts {
		vec, err := e.embedOne(ctx, prefix+text)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}

		out[i] = vec
	}

	return out, nil
}

func (e *Embedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]string{
		"model":  e.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	return result.Embedding, nil
}
