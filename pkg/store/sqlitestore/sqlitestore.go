// Package sqlitestore is a single-file, pure-Go vector store backend built
// on modernc.org/sqlite, used when no Postgres is configured.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

// Store is a SQLite-backed implementation of the vector store contract.
type Store struct {
	db        *sql.DB
	dimension int
}

// Open creates or opens the database at path and ensures its schema exists.
// path may be ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadDimension(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	package_name TEXT,
	name TEXT,
	chunk_type TEXT,
	language TEXT,
	content TEXT,
	line_start INTEGER,
	line_end INTEGER,
	exported INTEGER,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS chunks_file_path_idx ON chunks(file_path);

CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	sha TEXT,
	author TEXT,
	email TEXT,
	date TEXT,
	subject TEXT,
	body TEXT,
	branch TEXT,
	commit_type TEXT,
	scope TEXT,
	decision_class TEXT,
	text TEXT,
	chunk_type TEXT,
	files_changed TEXT,
	additions INTEGER,
	deletions INTEGER,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS history_author_idx ON history(author);
CREATE INDEX IF NOT EXISTS history_date_idx ON history(date);

CREATE TABLE IF NOT EXISTS store_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

func (s *Store) loadDimension(ctx context.Context) error {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}

	if err != nil {
		return fmt.Errorf("load dimension: %w", err)
	}

	if _, err := fmt.Sscanf(value, "%d", &s.dimension); err != nil {
		return fmt.Errorf("parse stored dimension: %w", err)
	}

	return nil
}

// persistDimension discovers the dimension from the first non-empty batch
// seen and persists it; later batches with a different width are rejected.
func (s *Store) persistDimension(ctx context.Context, dim int) error {
	if s.dimension == 0 {
		s.dimension = dim

		_, err := s.db.ExecContext(ctx,
			`INSERT INTO store_meta(key, value) VALUES ('dimension', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			fmt.Sprintf("%d", dim))
		if err != nil {
			return fmt.Errorf("persist dimension: %w", err)
		}

		return nil
	}

	if dim != s.dimension {
		return &store.ErrDimensionMismatch{Expected: s.dimension, Got: dim}
	}

	return nil
}

// InsertChunks upserts CodeChunk rows by id in one transaction. It deletes
// nothing; ReplaceFileChunks swaps out a file's rows.
func (s *Store) InsertChunks(ctx context.Context, rows []store.ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert chunks: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		blob, err := store.EncodeVector(r.Embedding)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported, embedding)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				file_path=excluded.file_path, package_name=excluded.package_name, name=excluded.name,
				chunk_type=excluded.chunk_type, language=excluded.language, content=excluded.content,
				line_start=excluded.line_start, line_end=excluded.line_end, exported=excluded.exported,
				embedding=excluded.embedding`,
			r.ID, r.FilePath, r.PackageName, r.Name, r.ChunkType, r.Language, r.Content,
			r.LineStart, r.LineEnd, boolToInt(r.Exported), blob,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert chunks: %w", err)
	}

	return nil
}

// ReplaceFileChunks deletes all chunk rows for filePath and inserts rows in
// the same transaction, so a reader never observes a partial replacement.
func (s *Store) ReplaceFileChunks(ctx context.Context, filePath string, rows []store.ChunkRow) error {
	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("delete existing chunks for %s: %w", filePath, err)
	}

	for _, r := range rows {
		blob, err := store.EncodeVector(r.Embedding)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported, embedding)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.FilePath, r.PackageName, r.Name, r.ChunkType, r.Language, r.Content,
			r.LineStart, r.LineEnd, boolToInt(r.Exported), blob,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns the k chunks whose embedding is most cosine-similar to
// vector, optionally restricted to file paths with the given prefix.
func (s *Store) Search(ctx context.Context, vector []float32, k int, fileFilter string) ([]store.ScoredChunk, error) {
	query := `SELECT id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported, embedding FROM chunks`

	args := []any{}
	if fileFilter != "" {
		query += ` WHERE file_path LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(fileFilter))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	scored := make([]store.ScoredChunk, 0)

	for rows.Next() {
		var (
			c        store.ChunkRow
			exported int
			blob     []byte
		)

		if err := rows.Scan(&c.ID, &c.FilePath, &c.PackageName, &c.Name, &c.ChunkType, &c.Language,
			&c.Content, &c.LineStart, &c.LineEnd, &exported, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}

		c.Exported = exported != 0

		vec, err := store.DecodeVector(blob)
		if err != nil {
			return nil, err
		}

		c.Embedding = vec

		scored = append(scored, store.ScoredChunk{Chunk: c, Score: store.CosineSimilarity(vector, vec)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}

	return topK(scored, k), nil
}

// SearchGitHistory returns the k history rows most cosine-similar to
// vector, optionally filtered by an ANDed structured predicate.
func (s *Store) SearchGitHistory(ctx context.Context, vector []float32, k int, where *store.Where) ([]store.ScoredHistory, error) {
	query := `SELECT id, sha, author, email, date, subject, body, branch, commit_type, scope, decision_class, text, chunk_type, files_changed, additions, deletions, embedding FROM history`

	clause, args, err := buildWhereSQL(where)
	if err != nil {
		return nil, err
	}

	if clause != "" {
		query += " WHERE " + clause
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	scored := make([]store.ScoredHistory, 0)

	for rows.Next() {
		var (
			h            store.HistoryRow
			dateStr      string
			filesChanged string
			blob         []byte
		)

		if err := rows.Scan(&h.ID, &h.SHA, &h.Author, &h.Email, &dateStr, &h.Subject, &h.Body, &h.Branch,
			&h.CommitType, &h.Scope, &h.DecisionClass, &h.Text, &h.ChunkType, &filesChanged,
			&h.Additions, &h.Deletions, &blob); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		if parsed, err := time.Parse(time.RFC3339, dateStr); err == nil {
			h.Date = parsed
		}

		if filesChanged != "" {
			h.FilesChanged = strings.Split(filesChanged, "\x1f")
		}

		vec, err := store.DecodeVector(blob)
		if err != nil {
			return nil, err
		}

		h.Embedding = vec

		scored = append(scored, store.ScoredHistory{Row: h, Score: store.CosineSimilarity(vector, vec)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return topKHistory(scored, k), nil
}

// InsertHistory upserts HistoryChunk rows by id; history is append-only so
// re-ingest of the same id is a same-value upsert.
func (s *Store) InsertHistory(ctx context.Context, rows []store.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert history: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		blob, err := store.EncodeVector(r.Embedding)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO history (id, sha, author, email, date, subject, body, branch, commit_type, scope, decision_class, text, chunk_type, files_changed, additions, deletions, embedding)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				sha=excluded.sha, author=excluded.author, email=excluded.email, date=excluded.date,
				subject=excluded.subject, body=excluded.body, branch=excluded.branch,
				commit_type=excluded.commit_type, scope=excluded.scope, decision_class=excluded.decision_class,
				text=excluded.text, chunk_type=excluded.chunk_type, files_changed=excluded.files_changed,
				additions=excluded.additions, deletions=excluded.deletions, embedding=excluded.embedding`,
			r.ID, r.SHA, r.Author, r.Email, r.Date.Format(time.RFC3339), r.Subject, r.Body, r.Branch,
			r.CommitType, r.Scope, r.DecisionClass, r.Text, r.ChunkType,
			strings.Join(r.FilesChanged, "\x1f"), r.Additions, r.Deletions, blob,
		)
		if err != nil {
			return fmt.Errorf("upsert history %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByFilePath removes every chunk row for path and reports how many
// rows were deleted.
func (s *Store) DeleteByFilePath(ctx context.Context, path string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("delete by file path: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(affected), nil
}

// GetStats reports row counts and the discovered embedding dimension.
func (s *Store) GetStats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	stats.Dimension = s.dimension

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return store.Stats{}, fmt.Errorf("count chunks: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&stats.HistoryCount); err != nil {
		return store.Stats{}, fmt.Errorf("count history: %w", err)
	}

	return stats, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func likePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix) + "%"
}

func buildWhereSQL(where *store.Where) (string, []any, error) {
	if where == nil || len(where.Clauses) == 0 {
		return "", nil, nil
	}

	columns := map[store.WhereField]string{
		store.FieldDate:          "date",
		store.FieldAuthor:        "author",
		store.FieldFilePath:      "files_changed",
		store.FieldCommitType:    "commit_type",
		store.FieldDecisionClass: "decision_class",
	}

	var (
		parts []string
		args  []any
	)

	for _, c := range where.Clauses {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, &store.ErrMalformedPredicate{Field: string(c.Field)}
		}

		op := "="
		switch c.Op {
		case "=", ">=", "<=":
			op = c.Op
		case "starts_with":
			// files_changed joins paths with \x1f, so also match a prefix
			// at the start of any later path in the list.
			parts = append(parts, "("+col+" LIKE ? ESCAPE '\\' OR "+col+" LIKE ? ESCAPE '\\')")
			args = append(args, likePrefix(c.Value), "%\x1f"+likePrefix(c.Value))
			continue
		}

		parts = append(parts, fmt.Sprintf("%s %s ?", col, op))
		args = append(args, c.Value)
	}

	return strings.Join(parts, " AND "), args, nil
}

func topK(scored []store.ScoredChunk, k int) []store.ScoredChunk {
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > 0 && k < len(scored) {
		return scored[:k]
	}

	return scored
}

func topKHistory(scored []store.ScoredHistory, k int) []store.ScoredHistory {
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > 0 && k < len(scored) {
		return scored[:k]
	}

	return scored
}
