// Package cortex is the facade consumed by both the MCP tool server and
// the CLI: it turns the five tool-surface verbs (search, git_search,
// explain, assess, file_profile) into calls against a Store and an
// embedding provider, holding the signal/profile snapshot produced by
// the most recent reindex in memory.
package cortex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/profile"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/provider"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/query"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/signals"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/synth"
)

const (
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "

	defaultSearchLimit = 10
)

// Cortex is the verb-level facade. Construct with New and keep it
// reindexed via ReindexHistory whenever the underlying repository
// changes.
type Cortex struct {
	store    Store
	embedder provider.Embedder

	mu       sync.RWMutex
	history  []history.Chunk
	signals  []signals.Record
	profiles []profile.FileProfile
}

// New builds a facade over an already-open Store and Embedder.
func New(st Store, embedder provider.Embedder) *Cortex {
	return &Cortex{store: st, embedder: embedder}
}

// ReindexHistory recomputes the signal and file-profile snapshot from a
// full set of history chunks, then persists their embeddings to the
// store. now anchors the profile builder's staleness scoring.
func (c *Cortex) ReindexHistory(ctx context.Context, chunks []history.Chunk, now time.Time) error {
	sigs := signals.Detect(chunks)
	profiles := profile.Build(chunks, sigs, now)

	rows, err := c.embedHistoryRows(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed history rows: %w", err)
	}

	if err := c.store.InsertHistory(ctx, rows); err != nil {
		return fmt.Errorf("insert history rows: %w", err)
	}

	c.mu.Lock()
	c.history = chunks
	c.signals = sigs
	c.profiles = profiles
	c.mu.Unlock()

	return nil
}

// IndexFile embeds and replaces a single file's code chunks, atomically
// discarding any chunks previously stored for that path.
func (c *Cortex) IndexFile(ctx context.Context, filePath string, chunks []store.ChunkRow) error {
	texts := make([]string, len(chunks))
	for i, row := range chunks {
		texts[i] = documentPrefix + row.Content
	}

	vectors, _, err := c.embedder.EmbedBatch(ctx, texts, provider.BatchOptions{Prefix: ""})
	if err != nil {
		return fmt.Errorf("embed file chunks: %w", err)
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	return c.store.ReplaceFileChunks(ctx, filePath, chunks)
}

func (c *Cortex) embedHistoryRows(ctx context.Context, chunks []history.Chunk) ([]store.HistoryRow, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = documentPrefix + ch.Text
	}

	vectors, _, err := c.embedder.EmbedBatch(ctx, texts, provider.BatchOptions{})
	if err != nil {
		return nil, err
	}

	rows := make([]store.HistoryRow, len(chunks))
	for i, ch := range chunks {
		rows[i] = store.HistoryRow{
			ID:            ch.ID,
			SHA:           ch.SHA,
			Author:        ch.Author,
			Email:         ch.Email,
			Date:          ch.Date,
			Subject:       ch.Subject,
			Body:          ch.Body,
			CommitType:    ch.CommitType,
			Scope:         ch.Scope,
			DecisionClass: string(ch.DecisionClass),
			Text:          ch.Text,
			ChunkType:     string(ch.ChunkType),
			FilesChanged:  ch.FilesChanged,
			Additions:     ch.Additions,
			Deletions:     ch.Deletions,
			Embedding:     vectors[i],
		}
	}

	return rows, nil
}

// Search embeds a natural-language query and returns the nearest code
// chunks, optionally restricted to paths starting with filter.
func (c *Cortex) Search(ctx context.Context, text string, limit int, filter string) ([]store.ScoredChunk, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vector, err := c.embedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return c.store.Search(ctx, vector, limit, filter)
}

// GitSearchOptions carries the optional structured filters git_search
// accepts alongside its free-text query.
type GitSearchOptions struct {
	After         string
	Before        string
	Author        string
	File          string
	Type          string
	Limit         int
	Sort          string
	UniqueCommits bool
}

// GitSearch classifies the query to decide which structured filters to
// infer from its text, merges them with any explicit GitSearchOptions
// (explicit options win), and returns the ranked commit history.
func (c *Cortex) GitSearch(ctx context.Context, text string, opts GitSearchOptions, now time.Time) ([]store.ScoredHistory, query.Classification, error) {
	classification := query.Classify(text, now)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	where, err := buildWhere(classification, opts)
	if err != nil {
		return nil, classification, fmt.Errorf("build search filter: %w", err)
	}

	vector, err := c.embedQuery(ctx, text)
	if err != nil {
		return nil, classification, fmt.Errorf("embed query: %w", err)
	}

	results, err := c.store.SearchGitHistory(ctx, vector, limit, where)
	if err != nil {
		return nil, classification, err
	}

	if opts.UniqueCommits {
		results = dedupeBySHA(results)
	}

	return results, classification, nil
}

func buildWhere(classification query.Classification, opts GitSearchOptions) (*store.Where, error) {
	var clauses []store.Clause

	after := opts.After
	if after == "" {
		if v, ok := classification.ExtractedParams["after"].(string); ok {
			after = v
		}
	}

	if after != "" {
		clauses = append(clauses, store.Clause{Field: store.FieldDate, Op: ">=", Value: after})
	}

	if opts.Before != "" {
		clauses = append(clauses, store.Clause{Field: store.FieldDate, Op: "<=", Value: opts.Before})
	}

	author := opts.Author
	if author == "" {
		if v, ok := classification.ExtractedParams["author"].(string); ok {
			author = v
		}
	}

	if author != "" {
		clauses = append(clauses, store.Clause{Field: store.FieldAuthor, Op: "=", Value: author})
	}

	file := opts.File
	if file == "" {
		if v, ok := classification.ExtractedParams["file"].(string); ok {
			file = v
		}
	}

	if file != "" {
		clauses = append(clauses, store.Clause{Field: store.FieldFilePath, Op: "starts_with", Value: file})
	}

	if opts.Type != "" {
		clauses = append(clauses, store.Clause{Field: store.FieldCommitType, Op: "=", Value: opts.Type})
	}

	if len(clauses) == 0 {
		return nil, nil
	}

	return store.NewWhere(clauses...)
}

func dedupeBySHA(results []store.ScoredHistory) []store.ScoredHistory {
	seen := make(map[string]bool, len(results))

	out := make([]store.ScoredHistory, 0, len(results))

	for _, r := range results {
		if seen[r.Row.SHA] {
			continue
		}

		seen[r.Row.SHA] = true

		out = append(out, r)
	}

	return out
}

// ExplainResult combines a code search and a history search for a query
// that benefits from both kinds of evidence.
type ExplainResult struct {
	Code     []store.ScoredChunk
	History  []store.ScoredHistory
	Strategy query.Classification
}

// Explain runs both Search and GitSearch for the same query and returns
// their combined results.
func (c *Cortex) Explain(ctx context.Context, text string, now time.Time) (ExplainResult, error) {
	code, err := c.Search(ctx, text, defaultSearchLimit, "")
	if err != nil {
		return ExplainResult{}, fmt.Errorf("search code: %w", err)
	}

	hist, classification, err := c.GitSearch(ctx, text, GitSearchOptions{}, now)
	if err != nil {
		return ExplainResult{}, fmt.Errorf("search history: %w", err)
	}

	return ExplainResult{Code: code, History: hist, Strategy: classification}, nil
}

// Assess synthesizes warnings for a proposed change touching files,
// using the most recent reindex snapshot.
func (c *Cortex) Assess(files []string, changeType string) []synth.Warning {
	c.mu.RLock()
	defer c.mu.RUnlock()

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f] = true
	}

	var subset []profile.FileProfile

	for _, p := range c.profiles {
		if wanted[p.Path] {
			subset = append(subset, p)
		}
	}

	return synth.Synthesize(subset, c.signals, changeType)
}

// FileProfile returns the most recent profile computed for path, or
// false if the path has never been reindexed.
func (c *Cortex) FileProfile(path string) (profile.FileProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.profiles {
		if p.Path == path {
			return p, true
		}
	}

	return profile.FileProfile{}, false
}

func (c *Cortex) embedQuery(ctx context.Context, text string) ([]float32, error) {
	prefix := ""
	if c.embedder.Info().SupportsPrefixes {
		prefix = queryPrefix
	}

	return c.embedder.EmbedSingle(ctx, text, prefix)
}

// Close releases the underlying store.
func (c *Cortex) Close() error {
	return c.store.Close()
}
