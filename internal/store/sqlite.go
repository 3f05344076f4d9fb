package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT    NOT NULL,
	code       TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS snippets_updated_at ON snippets (updated_at DESC);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Create(ctx context.Context, title, code string) (int64, error) {
	if err := Validate(title, code); err != nil {
		return 0, err
	}

	ts := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (title, code, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title, code, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create snippet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snippet id: %w", err)
	}
	return id, nil
}

func (s *SQLite) Get(ctx context.Context, id int64) (*Snippet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, code, created_at, updated_at FROM snippets WHERE id = ?`, id)

	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find snippet: %w", err)
	}
	return snippet, nil
}

func (s *SQLite) Update(ctx context.Context, id int64, code, title string) error {
	if err := validateCode(code); err != nil {
		return err
	}

	ts := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`UPDATE snippets
		 SET code = ?, title = CASE WHEN ? = '' THEN title ELSE ? END, updated_at = ?
		 WHERE id = ?`,
		code, title, title, ts, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update snippet: %w", err)
	}
	return expectOneRow(res, id)
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	return expectOneRow(res, id)
}

func (s *SQLite) List(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, code, created_at, updated_at FROM snippets ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, *snippet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	return snippets, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row scanner) (*Snippet, error) {
	var (
		snippet              Snippet
		createdAt, updatedAt int64
	)
	if err := row.Scan(&snippet.ID, &snippet.Title, &snippet.Code, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	snippet.CreatedAt = time.UnixMilli(createdAt).UTC()
	snippet.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &snippet, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
