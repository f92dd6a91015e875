package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"poster-studio/internal/documents"
)

const schema = `
CREATE TABLE IF NOT EXISTS posters (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	data BLOB,
	created_at DATETIME,
	updated_at DATETIME
);`

type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at dataSourceName.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create posters table: %w", err)
	}
	return &sqliteStore{db: db, now: time.Now}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Save(ctx context.Context, doc *documents.Document) (string, error) {
	now := s.now().UTC()
	if doc.ID == "" {
		id := ulid.Make().String()
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO posters (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, doc.Name, doc.Data, now, now)
		if err != nil {
			return "", fmt.Errorf("insert poster: %w", err)
		}
		return id, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posters (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = excluded.updated_at`,
		doc.ID, doc.Name, doc.Data, now, now)
	if err != nil {
		return "", fmt.Errorf("upsert poster %s: %w", doc.ID, err)
	}
	return doc.ID, nil
}

func (s *sqliteStore) Find(ctx context.Context, id string) (*documents.Document, error) {
	doc := documents.Document{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, data, created_at, updated_at FROM posters WHERE id = ?", id).
		Scan(&doc.Name, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, documents.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find poster %s: %w", id, err)
	}
	return &doc, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]*documents.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, updated_at FROM posters ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list posters: %w", err)
	}
	defer rows.Close()

	var out []*documents.Document
	for rows.Next() {
		var doc documents.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posters WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete poster %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return documents.NotFound(id)
	}
	return nil
}
