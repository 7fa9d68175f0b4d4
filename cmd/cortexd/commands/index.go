package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/chunk"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/config"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/cortex"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/gitlib"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/history/chunker"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/history/extract"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

// maxChunkTokens bounds a single code chunk's estimated token count
// before it is truncated.
const maxChunkTokens = 2000

// maxFileDiffLines bounds how much of a file_diff chunk's unified diff
// is retained.
const maxFileDiffLines = 200

// IndexCommand holds the flags for the index command.
type IndexCommand struct {
	repoPath    string
	configPath  string
	skipHistory bool
	skipCode    bool
}

// NewIndexCommand creates and configures the index command.
func NewIndexCommand() *cobra.Command {
	ic := &IndexCommand{}

	cobraCmd := &cobra.Command{
		Use:   "index",
		Short: "Reindex a repository's code chunks and commit history",
		Long: `Walk the working tree for source files and the commit log for
history, chunk and embed both, and persist the result to the
configured store.`,
		RunE: ic.Run,
	}

	cobraCmd.Flags().StringVar(&ic.repoPath, "repo", "", "Repository path (defaults to config/CORTEX_RECALL_REPO/cwd)")
	cobraCmd.Flags().StringVar(&ic.configPath, "config", "", "Path to a config file (defaults searched if empty)")
	cobraCmd.Flags().BoolVar(&ic.skipHistory, "skip-history", false, "Skip reindexing commit history")
	cobraCmd.Flags().BoolVar(&ic.skipCode, "skip-code", false, "Skip reindexing code chunks")

	return cobraCmd
}

// Run executes the index command.
func (ic *IndexCommand) Run(cobraCmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(ic.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoPath := ic.repoPath
	if repoPath == "" {
		repoPath = cfg.Repository.Path
	}

	ctx := cobraCmd.Context()

	c, closeCortex, err := openCortex(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("open cortex: %w", err)
	}
	defer closeCortex()

	if !ic.skipCode {
		if err := ic.indexCode(ctx, c, repoPath); err != nil {
			return fmt.Errorf("index code: %w", err)
		}
	}

	if !ic.skipHistory {
		if err := ic.indexHistory(ctx, c, repoPath); err != nil {
			return fmt.Errorf("index history: %w", err)
		}
	}

	return nil
}

// indexCode walks repoPath's working tree, chunking every file whose
// extension a registered chunk.Plugin recognizes, and replaces each
// file's stored chunks in turn.
func (ic *IndexCommand) indexCode(ctx context.Context, c *cortex.Cortex, repoPath string) error {
	return filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		if _, ok := chunk.Lookup(path); !ok {
			return nil
		}

		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			rel = path
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", rel, readErr)
		}

		chunks, chunkErr := chunk.ChunkFile(rel, content, maxChunkTokens)
		if chunkErr != nil {
			return fmt.Errorf("chunk %s: %w", rel, chunkErr)
		}

		rows := toChunkRows(rel, chunks)

		return c.IndexFile(ctx, rel, rows)
	})
}

func toChunkRows(path string, chunks []chunk.Chunk) []store.ChunkRow {
	rows := make([]store.ChunkRow, len(chunks))

	for i, ch := range chunks {
		rows[i] = store.ChunkRow{
			ID:          ch.ID,
			FilePath:    path,
			PackageName: ch.PackageName,
			Name:        ch.Name,
			ChunkType:   string(ch.ChunkType),
			Language:    ch.Language,
			Content:     ch.Content,
			LineStart:   ch.LineStart,
			LineEnd:     ch.LineEnd,
			Exported:    ch.Exported,
		}
	}

	return rows
}

// indexHistory walks repoPath's commit log into RawCommits, chunks each
// one, and reindexes the whole accumulated set in a single call so the
// signal detectors and profile builder see the complete history.
func (ic *IndexCommand) indexHistory(ctx context.Context, c *cortex.Cortex, repoPath string) error {
	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	extractor := extract.New(repo)

	var chunks []history.Chunk

	opts := chunker.Options{
		IncludeFileChunks:  true,
		IncludeMergeGroups: true,
		MaxFileDiffLines:   maxFileDiffLines,
		GetFileDiff:        extractor.GetFileDiff,
	}

	walkErr := extractor.Walk(func(raw history.RawCommit) error {
		chunks = append(chunks, chunker.Chunk(raw, opts)...)
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk commit log: %w", walkErr)
	}

	return c.ReindexHistory(ctx, chunks, time.Now())
}
