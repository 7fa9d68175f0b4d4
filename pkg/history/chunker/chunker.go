// Package chunker deterministically transforms one raw commit into one or
// more HistoryChunks (commit_summary, file_diff, merge_group).
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

// conventionalCommitPattern is the verbatim conventional-commit grammar.
var conventionalCommitPattern = regexp.MustCompile(
	`^(feat|fix|refactor|docs|style|test|chore|perf|ci|build|revert)(\(([^)]+)\))?!?:\s`,
)

var mergeFromBranchPattern = regexp.MustCompile(`(?i)from\s+([^\s]+)`)

// Options configures which optional chunk kinds the chunker emits.
type Options struct {
	IncludeFileChunks   bool
	IncludeMergeGroups  bool
	MaxFileDiffLines    int
	// GetFileDiff fetches the unified diff for sha/path, truncated to
	// MaxFileDiffLines; nil means no diff is available and the
	// file_diff chunk falls back to a one-line description.
	GetFileDiff func(sha, path string, maxLines int) (string, error)
}

// ID returns the 16-hex-char fingerprint for a HistoryChunk: the first 64
// bits of SHA-256 over (sha || chunkType || filePath).
func ID(sha string, chunkType history.ChunkType, filePath string) string {
	h := sha256.New()
	h.Write([]byte(sha))
	h.Write([]byte(chunkType))
	h.Write([]byte(filePath))
	sum := h.Sum(nil)

	return hex.EncodeToString(sum[:8])
}

// Chunk transforms raw into its HistoryChunks.
func Chunk(raw history.RawCommit, opts Options) []history.Chunk {
	commitType, scope := parseConventional(raw.Subject)
	decisionClass := classifyDecision(raw, commitType)
	branch := deriveBranch(raw)

	var filesChanged []string

	additions, deletions := 0, 0

	for _, f := range raw.Files {
		filesChanged = append(filesChanged, f.Path)
		additions += f.Additions
		deletions += f.Deletions
	}

	chunks := make([]history.Chunk, 0, len(raw.Files)+2)

	if !isTrivial(raw) {
		chunks = append(chunks, summaryChunk(raw, commitType, scope, decisionClass, branch, filesChanged, additions, deletions))
	}

	if opts.IncludeFileChunks {
		for _, f := range raw.Files {
			chunks = append(chunks, fileDiffChunk(raw, f, commitType, scope, decisionClass, branch, opts))
		}
	}

	if opts.IncludeMergeGroups && len(raw.Parents) > 1 {
		chunks = append(chunks, mergeGroupChunk(raw, commitType, scope, decisionClass, branch, filesChanged, additions, deletions))
	}

	return chunks
}

// isTrivial reports whether a commit touches no files and has neither a
// subject nor a body, disqualifying it from a commit_summary chunk.
func isTrivial(raw history.RawCommit) bool {
	return len(raw.Files) == 0 && raw.Body == "" && raw.Subject == ""
}

func summaryChunk(
	raw history.RawCommit, commitType, scope string, decisionClass history.DecisionClass,
	branch string, filesChanged []string, additions, deletions int,
) history.Chunk {
	var b strings.Builder

	fmt.Fprintf(&b, "search_document: Commit by %s on %s: %q\n",
		raw.Author, raw.Date.Format("2006-01-02"), raw.Subject)

	if raw.Body != "" {
		b.WriteString(raw.Body)
		b.WriteString("\n")
	}

	for _, f := range raw.Files {
		fmt.Fprintf(&b, "%s (+%d/-%d)\n", f.Path, f.Additions, f.Deletions)
	}

	dirs := affectedDirectories(filesChanged)
	if len(dirs) > 0 {
		b.WriteString("Directories affected: ")
		b.WriteString(strings.Join(dirs, ", "))
		b.WriteString("\n")
	}

	return history.Chunk{
		ID:            ID(raw.SHA, history.ChunkCommitSummary, ""),
		SHA:           raw.SHA,
		Author:        raw.Author,
		Email:         raw.Email,
		Date:          raw.Date,
		Subject:       raw.Subject,
		Body:          raw.Body,
		Branch:        branch,
		CommitType:    commitType,
		Scope:         scope,
		DecisionClass: decisionClass,
		Text:          b.String(),
		ChunkType:     history.ChunkCommitSummary,
		FilesChanged:  filesChanged,
		Additions:     additions,
		Deletions:     deletions,
	}
}

func fileDiffChunk(
	raw history.RawCommit, f history.FileStat, commitType, scope string,
	decisionClass history.DecisionClass, branch string, opts Options,
) history.Chunk {
	text := fmt.Sprintf("search_document: File change in %s at %s\n", f.Path, raw.SHA)

	if opts.GetFileDiff != nil {
		diff, err := opts.GetFileDiff(raw.SHA, f.Path, opts.MaxFileDiffLines)
		if err == nil && diff != "" {
			text += diff
		} else {
			text += fmt.Sprintf("%s changed by %s (+%d/-%d)", f.Path, raw.Author, f.Additions, f.Deletions)
		}
	} else {
		text += fmt.Sprintf("%s changed by %s (+%d/-%d)", f.Path, raw.Author, f.Additions, f.Deletions)
	}

	return history.Chunk{
		ID:            ID(raw.SHA, history.ChunkFileDiff, f.Path),
		SHA:           raw.SHA,
		Author:        raw.Author,
		Email:         raw.Email,
		Date:          raw.Date,
		Subject:       raw.Subject,
		Body:          raw.Body,
		Branch:        branch,
		CommitType:    commitType,
		Scope:         scope,
		DecisionClass: decisionClass,
		Text:          text,
		ChunkType:     history.ChunkFileDiff,
		FilesChanged:  []string{f.Path},
		Additions:     f.Additions,
		Deletions:     f.Deletions,
	}
}

func mergeGroupChunk(
	raw history.RawCommit, commitType, scope string, decisionClass history.DecisionClass,
	branch string, filesChanged []string, additions, deletions int,
) history.Chunk {
	text := fmt.Sprintf("search_document: Merge commit %s with parents %s (+%d/-%d across %d files)",
		raw.SHA, strings.Join(raw.Parents, ", "), additions, deletions, len(filesChanged))

	return history.Chunk{
		ID:            ID(raw.SHA, history.ChunkMergeGroup, ""),
		SHA:           raw.SHA,
		Author:        raw.Author,
		Email:         raw.Email,
		Date:          raw.Date,
		Subject:       raw.Subject,
		Body:          raw.Body,
		Branch:        branch,
		CommitType:    commitType,
		Scope:         scope,
		DecisionClass: decisionClass,
		Text:          text,
		ChunkType:     history.ChunkMergeGroup,
		FilesChanged:  filesChanged,
		Additions:     additions,
		Deletions:     deletions,
	}
}

// parseConventional extracts commit_type and scope from a subject matching
// the conventional-commit grammar.
func parseConventional(subject string) (commitType, scope string) {
	m := conventionalCommitPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", ""
	}

	return m[1], m[3]
}

// classifyDecision is a heuristic: a conventional type of feat/refactor/
// revert is a "decision", fix/docs/style/test/chore/perf/ci/build is
// "routine", and an unrecognized/missing type is "decision" for a merge
// commit (more than one parent) and "unknown" otherwise.
func classifyDecision(raw history.RawCommit, commitType string) history.DecisionClass {
	switch commitType {
	case "feat", "refactor", "revert":
		return history.DecisionClassDecision
	case "fix", "docs", "style", "test", "chore", "perf", "ci", "build":
		return history.DecisionClassRoutine
	default:
		if len(raw.Parents) > 1 {
			return history.DecisionClassDecision
		}

		return history.DecisionClassUnknown
	}
}

// deriveBranch prefers the first non-"HEAD ->" entry in refs that is not a
// tag; else a "from <branch>" fragment in a merge commit's subject; else
// empty.
func deriveBranch(raw history.RawCommit) string {
	if raw.Refs != "" {
		for _, ref := range strings.Split(raw.Refs, ",") {
			ref = strings.TrimSpace(ref)
			if ref == "" || strings.HasPrefix(ref, "HEAD ->") || strings.HasPrefix(ref, "tag:") {
				continue
			}

			return ref
		}
	}

	if len(raw.Parents) > 1 {
		if m := mergeFromBranchPattern.FindStringSubmatch(raw.Subject); m != nil {
			return m[1]
		}
	}

	return ""
}

// affectedDirectories returns the unique parent directories of paths,
// excluding ".", sorted for determinism.
func affectedDirectories(paths []string) []string {
	set := make(map[string]bool)

	for _, p := range paths {
		idx := strings.LastIndex(p, "/")
		if idx <= 0 {
			continue
		}

		set[p[:idx]] = true
	}

	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}

	sort.Strings(dirs)

	return dirs
}
