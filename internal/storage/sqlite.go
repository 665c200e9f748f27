// Package storage provides the SQLite implementation of the document catalog.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dry-U/File-tools/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content TEXT NOT NULL,
		keywords TEXT,
		file_type TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP,
		modified_at TIMESTAMP,
		vector_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_documents_modified_at ON documents(modified_at);
	CREATE INDEX IF NOT EXISTS idx_documents_file_type ON documents(file_type);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or fully replaces the record for doc.Path.
func (s *SQLiteCatalog) Upsert(ctx context.Context, doc *models.Document) error {
	keywordsJSON, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	var vectorID any
	if doc.VectorID != nil {
		vectorID = *doc.VectorID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (path, filename, content, keywords, file_type, size, created_at, modified_at, vector_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   filename = excluded.filename,
		   content = excluded.content,
		   keywords = excluded.keywords,
		   file_type = excluded.file_type,
		   size = excluded.size,
		   created_at = excluded.created_at,
		   modified_at = excluded.modified_at,
		   vector_id = excluded.vector_id`,
		doc.Path, doc.Filename, doc.Content, string(keywordsJSON), doc.FileType,
		doc.Size, doc.CreatedAt, doc.ModifiedAt, vectorID,
	)
	return err
}

// Get returns the record for path, or ErrNotFound.
func (s *SQLiteCatalog) Get(ctx context.Context, path string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, filename, content, keywords, file_type, size, created_at, modified_at, vector_id
		 FROM documents WHERE path = ?`, path,
	)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return doc, err
}

// Delete removes the record for path.
func (s *SQLiteCatalog) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

// List returns records ordered by path with offset and limit.
func (s *SQLiteCatalog) List(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, filename, content, keywords, file_type, size, created_at, modified_at, vector_id
		 FROM documents ORDER BY path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Scan streams every record to fn in path order.
func (s *SQLiteCatalog) Scan(ctx context.Context, fn func(doc *models.Document) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, filename, content, keywords, file_type, size, created_at, modified_at, vector_id
		 FROM documents ORDER BY path`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the total number of records.
func (s *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func scanDocument(scan func(dest ...any) error) (*models.Document, error) {
	var doc models.Document
	var keywordsJSON sql.NullString
	var vectorID sql.NullInt64
	err := scan(&doc.Path, &doc.Filename, &doc.Content, &keywordsJSON, &doc.FileType,
		&doc.Size, &doc.CreatedAt, &doc.ModifiedAt, &vectorID)
	if err != nil {
		return nil, err
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &doc.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	if vectorID.Valid {
		doc.VectorID = &vectorID.Int64
	}
	return &doc, nil
}
