package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/provider/ollama"
)

func TestEmbedder_EmbedRaw_Success(t *testing.T) {
	t.Parallel()

	var gotPrompts []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		gotPrompts = append(gotPrompts, req.Prompt)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{0.1, 0.2, 0.3},
		})
	}))
	defer srv.Close()

	e := ollama.New(ollama.WithURL(srv.URL), ollama.WithModel("nomic-embed-text"))

	vectors, err := e.EmbedRaw(context.Background(), []string{"hello", "world"}, "search_document: ")

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Equal(t, []string{"search_document: hello", "search_document: world"}, gotPrompts)
}

func TestEmbedder_EmbedRaw_ServerErrorFailsWholeBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	e := ollama.New(ollama.WithURL(srv.URL))

	_, err := e.EmbedRaw(context.Background(), []string{"a", "b"}, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed item 0")
}

func TestEmbedder_ProbeDimension(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": make([]float32, 768),
		})
	}))
	defer srv.Close()

	e := ollama.New(ollama.WithURL(srv.URL))

	dim, err := e.ProbeDimension(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 768, dim)
}

func TestEmbedder_HealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1}})
	}))
	defer srv.Close()

	e := ollama.New(ollama.WithURL(srv.URL))

	assert.NoError(t, e.HealthCheck(context.Background()))
}

func TestEmbedder_NameAndSupportsPrefixes(t *testing.T) {
	t.Parallel()

	e := ollama.New(ollama.WithModel("nomic-embed-text"))

	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
	assert.False(t, e.SupportsPrefixes())
}
