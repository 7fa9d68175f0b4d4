// Package history holds the shared data model for the git-history signal
// pipeline: raw commit extraction, history chunking, and the conventional-
// commit grammar both depend on.
package history

import "time"

// ChunkType distinguishes the facet of a commit a HistoryChunk represents.
type ChunkType string

const (
	// ChunkCommitSummary is always emitted for a non-merge, non-trivial commit.
	ChunkCommitSummary ChunkType = "commit_summary"
	// ChunkFileDiff is emitted per file when file-level chunking is enabled.
	ChunkFileDiff ChunkType = "file_diff"
	// ChunkMergeGroup is emitted for merge commits when merge-group chunking
	// is enabled.
	ChunkMergeGroup ChunkType = "merge_group"
)

// DecisionClass coarsely labels whether a commit represents an
// architectural choice, routine maintenance, or is unclassifiable.
type DecisionClass string

const (
	DecisionClassDecision DecisionClass = "decision"
	DecisionClassRoutine  DecisionClass = "routine"
	DecisionClassUnknown  DecisionClass = "unknown"
)

// FileStat is a single file's change stats within a commit.
type FileStat struct {
	Path      string
	Additions int
	Deletions int
}

// RawCommit is the Commit Extractor's output: one entry per commit, order
// preserved as walked.
type RawCommit struct {
	SHA       string
	Parents   []string
	Author    string
	Email     string
	Date      time.Time
	Refs      string
	Subject   string
	Body      string
	Files     []FileStat
}

// Chunk is one facet of a commit, ready for embedding and storage.
type Chunk struct {
	ID            string
	SHA           string
	Author        string
	Email         string
	Date          time.Time
	Subject       string
	Body          string
	Branch        string
	CommitType    string
	Scope         string
	DecisionClass DecisionClass
	Text          string
	ChunkType     ChunkType
	FilesChanged  []string
	Additions     int
	Deletions     int
}
