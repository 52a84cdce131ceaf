// Package sqlite persists chunk vectors in a local SQLite database so an
// ingested corpus survives restarts. Vectors are stored as JSON arrays and
// scored with a full cosine scan, which is fine at the corpus sizes this
// tool targets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"docsense/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	source    TEXT NOT NULL,
	idx       INTEGER NOT NULL,
	total     INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Storage is a SQLite-backed vector store.
type Storage struct {
	db        *sql.DB
	dimension int
}

func NewStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(dimension)); err != nil {
		return fmt.Errorf("store dimension: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source, idx, total, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   source = excluded.source, idx = excluded.idx, total = excluded.total,
		   content = excluded.content, embedding = excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(vectors[i]) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
		blob, err := json.Marshal(vectors[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Index, c.Total, c.Content, string(blob)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, idx, total, content, embedding FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Candidate
	for rows.Next() {
		var c domain.Chunk
		var blob string
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Total, &c.Content, &blob); err != nil {
			return nil, err
		}
		var stored []float32
		if err := json.Unmarshal([]byte(blob), &stored); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", c.ID, err)
		}
		results = append(results, domain.Candidate{Chunk: c, Similarity: dot(stored, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *Storage) Close() error { return s.db.Close() }

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
