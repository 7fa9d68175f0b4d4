// Package pgvectorstore is a Postgres + pgvector-backed vector store
// backend, used in deployments where a shared database is available.
package pgvectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

// Store is a Postgres-backed implementation of the vector store contract.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// Open connects to url and ensures the schema exists, discovering a
// previously persisted dimension if one was recorded.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open pgvector store: %w", err)
	}

	s := &Store{pool: pool}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.loadDimension(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	package_name TEXT,
	name TEXT,
	chunk_type TEXT,
	language TEXT,
	content TEXT,
	line_start INT,
	line_end INT,
	exported BOOLEAN,
	embedding vector
);
CREATE INDEX IF NOT EXISTS chunks_file_path_idx ON chunks(file_path);

CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	sha TEXT,
	author TEXT,
	email TEXT,
	date TIMESTAMPTZ,
	subject TEXT,
	body TEXT,
	branch TEXT,
	commit_type TEXT,
	scope TEXT,
	decision_class TEXT,
	text TEXT,
	chunk_type TEXT,
	files_changed TEXT[],
	additions INT,
	deletions INT,
	embedding vector
);
CREATE INDEX IF NOT EXISTS history_author_idx ON history(author);
CREATE INDEX IF NOT EXISTS history_date_idx ON history(date);

CREATE TABLE IF NOT EXISTS store_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

func (s *Store) loadDimension(ctx context.Context) error {
	var value string

	err := s.pool.QueryRow(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&value)
	if err == pgx.ErrNoRows {
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

func (s *Store) persistDimension(ctx context.Context, dim int) error {
	if s.dimension == 0 {
		s.dimension = dim

		_, err := s.pool.Exec(ctx, `
			INSERT INTO store_meta(key, value) VALUES ('dimension', $1)
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

// InsertChunks upserts CodeChunk rows by id.
func (s *Store) InsertChunks(ctx context.Context, rows []store.ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO UPDATE SET
				file_path=excluded.file_path, package_name=excluded.package_name, name=excluded.name,
				chunk_type=excluded.chunk_type, language=excluded.language, content=excluded.content,
				line_start=excluded.line_start, line_end=excluded.line_end, exported=excluded.exported,
				embedding=excluded.embedding`,
			r.ID, r.FilePath, r.PackageName, r.Name, r.ChunkType, r.Language, r.Content,
			r.LineStart, r.LineEnd, r.Exported, pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert chunks: %w", err)
	}

	return nil
}

// ReplaceFileChunks deletes then inserts rows for filePath within one
// transaction.
func (s *Store) ReplaceFileChunks(ctx context.Context, filePath string, rows []store.ChunkRow) error {
	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE file_path = $1`, filePath); err != nil {
		return fmt.Errorf("delete existing chunks for %s: %w", filePath, err)
	}

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			r.ID, r.FilePath, r.PackageName, r.Name, r.ChunkType, r.Language, r.Content,
			r.LineStart, r.LineEnd, r.Exported, pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Search returns the k nearest chunks by pgvector cosine distance, using
// the <=> operator so the comparison runs inside Postgres.
func (s *Store) Search(ctx context.Context, vector []float32, k int, fileFilter string) ([]store.ScoredChunk, error) {
	q := `SELECT id, file_path, package_name, name, chunk_type, language, content, line_start, line_end, exported,
		1 - (embedding <=> $1) AS score
		FROM chunks`

	args := []any{pgvector.NewVector(vector)}

	if fileFilter != "" {
		q += " WHERE file_path LIKE $2"
		args = append(args, escapeLikePrefix(fileFilter)+"%")
	}

	q += " ORDER BY score DESC LIMIT $" + placeholderIndex(len(args)+1)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	out := make([]store.ScoredChunk, 0)

	for rows.Next() {
		var c store.ChunkRow

		var score float64

		if err := rows.Scan(&c.ID, &c.FilePath, &c.PackageName, &c.Name, &c.ChunkType, &c.Language,
			&c.Content, &c.LineStart, &c.LineEnd, &c.Exported, &score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}

		out = append(out, store.ScoredChunk{Chunk: c, Score: score})
	}

	return out, rows.Err()
}

// SearchGitHistory returns the k nearest history rows, optionally filtered
// by an ANDed structured predicate.
func (s *Store) SearchGitHistory(ctx context.Context, vector []float32, k int, where *store.Where) ([]store.ScoredHistory, error) {
	q := `SELECT id, sha, author, email, date, subject, body, branch, commit_type, scope, decision_class,
		text, chunk_type, files_changed, additions, deletions, 1 - (embedding <=> $1) AS score
		FROM history`

	args := []any{pgvector.NewVector(vector)}

	clause, whereArgs, err := buildWhereSQL(where, len(args)+1)
	if err != nil {
		return nil, err
	}

	if clause != "" {
		q += " WHERE " + clause
		args = append(args, whereArgs...)
	}

	q += " ORDER BY score DESC LIMIT $" + placeholderIndex(len(args)+1)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	out := make([]store.ScoredHistory, 0)

	for rows.Next() {
		var h store.HistoryRow

		var score float64

		if err := rows.Scan(&h.ID, &h.SHA, &h.Author, &h.Email, &h.Date, &h.Subject, &h.Body, &h.Branch,
			&h.CommitType, &h.Scope, &h.DecisionClass, &h.Text, &h.ChunkType, &h.FilesChanged,
			&h.Additions, &h.Deletions, &score); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		out = append(out, store.ScoredHistory{Row: h, Score: score})
	}

	return out, rows.Err()
}

// InsertHistory upserts HistoryChunk rows by id.
func (s *Store) InsertHistory(ctx context.Context, rows []store.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if err := s.persistDimension(ctx, len(r.Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert history: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO history (id, sha, author, email, date, subject, body, branch, commit_type, scope, decision_class, text, chunk_type, files_changed, additions, deletions, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (id) DO UPDATE SET
				sha=excluded.sha, author=excluded.author, email=excluded.email, date=excluded.date,
				subject=excluded.subject, body=excluded.body, branch=excluded.branch,
				commit_type=excluded.commit_type, scope=excluded.scope, decision_class=excluded.decision_class,
				text=excluded.text, chunk_type=excluded.chunk_type, files_changed=excluded.files_changed,
				additions=excluded.additions, deletions=excluded.deletions, embedding=excluded.embedding`,
			r.ID, r.SHA, r.Author, r.Email, r.Date, r.Subject, r.Body, r.Branch, r.CommitType, r.Scope,
			r.DecisionClass, r.Text, r.ChunkType, r.FilesChanged, r.Additions, r.Deletions, pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert history %s: %w", r.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteByFilePath removes every chunk row for path.
func (s *Store) DeleteByFilePath(ctx context.Context, path string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE file_path = $1`, path)
	if err != nil {
		return 0, fmt.Errorf("delete by file path: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// GetStats reports row counts and the discovered embedding dimension.
func (s *Store) GetStats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats

	stats.Dimension = s.dimension

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return store.Stats{}, fmt.Errorf("count chunks: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM history`).Scan(&stats.HistoryCount); err != nil {
		return store.Stats{}, fmt.Errorf("count history: %w", err)
	}

	return stats, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func escapeLikePrefix(v string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(v)
}

func placeholderIndex(i int) string {
	return fmt.Sprintf("%d", i)
}

func buildWhereSQL(where *store.Where, startIndex int) (string, []any, error) {
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

	idx := startIndex

	for _, c := range where.Clauses {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, &store.ErrMalformedPredicate{Field: string(c.Field)}
		}

		if c.Field == store.FieldFilePath {
			if c.Op == "starts_with" {
				parts = append(parts, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(%s) AS f WHERE f LIKE $%d)", col, idx))
				args = append(args, escapeLikePrefix(c.Value)+"%")
			} else {
				parts = append(parts, fmt.Sprintf("$%d = ANY(%s)", idx, col))
				args = append(args, c.Value)
			}
			idx++

			continue
		}

		op := "="
		switch c.Op {
		case "=", ">=", "<=":
			op = c.Op
		}

		parts = append(parts, fmt.Sprintf("%s %s $%d", col, op, idx))
		args = append(args, c.Value)
		idx++
	}

	return strings.Join(parts, " AND "), args, nil
}
