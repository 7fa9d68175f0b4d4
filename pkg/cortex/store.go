package cortex

import (
	"context"
	"io"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

// Store is the vector store contract the facade depends on. Both
// store/sqlitestore.Store and store/pgvectorstore.Store satisfy it by
// duck typing; neither package declares it, since it is consumed here.
type Store interface {
	io.Closer

	ReplaceFileChunks(ctx context.Context, filePath string, rows []store.ChunkRow) error
	InsertHistory(ctx context.Context, rows []store.HistoryRow) error
	Search(ctx context.Context, vector []float32, k int, fileFilter string) ([]store.ScoredChunk, error)
	SearchGitHistory(ctx context.Context, vector []float32, k int, where *store.Where) ([]store.ScoredHistory, error)
	DeleteByFilePath(ctx context.Context, path string) (int, error)
	GetStats(ctx context.Context) (store.Stats, error)
}
