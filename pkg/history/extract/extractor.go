// Package extract walks a repository's commit history into raw commit
// records, streaming one commit at a time so only a single commit's tree
// diff is ever materialized.
package extract

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/gitlib"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

// truncationSuffix marks a unified diff cut short by MaxLines.
const truncationSuffix = "\n... [diff truncated]"

// Extractor walks a repository's history and emits RawCommit records.
type Extractor struct {
	repo *gitlib.Repository
}

// New wraps an already-open repository.
func New(repo *gitlib.Repository) *Extractor {
	return &Extractor{repo: repo}
}

// Walk enumerates commits reachable from HEAD in topological order, calling
// visit once per commit. Enumeration stops at the first error visit returns.
func (e *Extractor) Walk(visit func(history.RawCommit) error) error {
	iter, err := e.repo.Log(&gitlib.LogOptions{})
	if err != nil {
		return fmt.Errorf("extract: open log: %w", err)
	}
	defer iter.Close()

	return iter.ForEach(func(c *gitlib.Commit) error {
		raw, buildErr := e.buildRawCommit(c)
		if buildErr != nil {
			return buildErr
		}

		return visit(raw)
	})
}

func (e *Extractor) buildRawCommit(c *gitlib.Commit) (history.RawCommit, error) {
	author := c.Author()

	subject, body := splitMessage(c.Message())

	parents := make([]string, c.NumParents())
	for i := range parents {
		parents[i] = c.ParentHash(i).String()
	}

	files, err := e.fileStats(c, parents)
	if err != nil {
		return history.RawCommit{}, fmt.Errorf("extract %s: %w", c.Hash().String(), err)
	}

	return history.RawCommit{
		SHA:     c.Hash().String(),
		Parents: parents,
		Author:  author.Name,
		Email:   author.Email,
		Date:    author.When,
		Subject: subject,
		Body:    body,
		Files:   files,
	}, nil
}

// fileStats diffs the commit against its first parent (or the empty tree
// for a root commit), returning per-file add/delete line counts.
func (e *Extractor) fileStats(c *gitlib.Commit, parents []string) ([]history.FileStat, error) {
	newTree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if len(parents) > 0 {
		parent, parentErr := c.Parent(0)
		if parentErr != nil {
			return nil, fmt.Errorf("parent commit: %w", parentErr)
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	diff, err := e.repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	return lineStatsPerFile(diff)
}

func lineStatsPerFile(diff *gitlib.Diff) ([]history.FileStat, error) {
	stats := make([]history.FileStat, 0, 8)

	err := diff.ForEach(func(delta gitlib.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		path := delta.NewFile.Path
		if path == "" {
			path = delta.OldFile.Path
		}

		stats = append(stats, history.FileStat{Path: path})
		idx := len(stats) - 1

		return func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			return func(line git2go.DiffLine) error {
				switch line.Origin {
				case git2go.DiffLineAddition:
					stats[idx].Additions++
				case git2go.DiffLineDeletion:
					stats[idx].Deletions++
				}

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff foreach: %w", err)
	}

	return stats, nil
}

// GetFileDiff returns the unified diff for a single file at sha, truncated
// at maxLines with a truncation marker appended when cut. Returns an empty
// string (not an error) when the file has no diff at this commit.
func (e *Extractor) GetFileDiff(sha, path string, maxLines int) (string, error) {
	hash := gitlib.NewHash(sha)

	commit, err := e.repo.LookupCommit(hash)
	if err != nil {
		return "", fmt.Errorf("lookup commit %s: %w", sha, err)
	}
	defer commit.Free()

	newTree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return "", fmt.Errorf("parent commit: %w", parentErr)
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return "", fmt.Errorf("parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	diff, err := e.repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return "", fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	return unifiedDiffForPath(diff, path, maxLines)
}

func unifiedDiffForPath(diff *gitlib.Diff, path string, maxLines int) (string, error) {
	var b strings.Builder

	lines := 0
	truncated := false

	err := diff.ForEach(func(delta gitlib.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		deltaPath := delta.NewFile.Path
		if deltaPath == "" {
			deltaPath = delta.OldFile.Path
		}

		if deltaPath != path {
			return func(git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
				return func(git2go.DiffLine) error { return nil }, nil
			}, nil
		}

		return func(hunk git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
			b.WriteString(hunk.Header)

			return func(line git2go.DiffLine) error {
				if lines >= maxLines {
					truncated = true

					return nil
				}

				b.WriteByte(linePrefix(line.Origin))
				b.WriteString(line.Content)
				lines++

				return nil
			}, nil
		}, nil
	}, git2go.DiffDetailLines)
	if err != nil {
		return "", fmt.Errorf("diff foreach: %w", err)
	}

	out := b.String()
	if truncated {
		out += truncationSuffix
	}

	return out, nil
}

func linePrefix(origin git2go.DiffLineType) byte {
	switch origin {
	case git2go.DiffLineAddition:
		return '+'
	case git2go.DiffLineDeletion:
		return '-'
	default:
		return ' '
	}
}

// splitMessage splits a git commit message into subject (first line) and
// body (remainder, with the blank separator line stripped).
func splitMessage(msg string) (subject, body string) {
	msg = strings.TrimRight(msg, "\n")

	idx := strings.IndexByte(msg, '\n')
	if idx < 0 {
		return msg, ""
	}

	subject = msg[:idx]
	body = strings.TrimLeft(msg[idx+1:], "\n")

	return subject, body
}
