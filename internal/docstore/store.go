// internal/docstore/store.go
package docstore

import (
	"database/sql"
	"fmt"
	"time"
)

// Document is a single row of the polymorphic key-typed document store:
// an (id, kind) composite key carrying an opaque JSON payload plus
// bookkeeping timestamps.
type Document struct {
	ID        string
	Kind      string
	Payload   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQLite-backed implementation of the document store contract:
// upsert-by-(id,kind), type-tagged reads, ordered listing.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open *sql.DB. Callers own the connection's
// lifecycle; Init must be called once before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the documents table if it does not already exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (id, kind)
		)`)
	if err != nil {
		return fmt.Errorf("docstore: init schema: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_kind_created ON documents(kind, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("docstore: init index: %w", err)
	}
	return nil
}

// ErrNotFound is returned by Get when no document exists under (id, kind).
var ErrNotFound = fmt.Errorf("docstore: document not found")

// ErrKindMismatch is returned by Get or Put when id already exists under a
// different kind than the one requested.
var ErrKindMismatch = fmt.Errorf("docstore: kind mismatch")

// Put upserts the document identified by (id, kind). created_at is
// preserved across updates; updated_at always advances to now. If id
// already exists under a different kind, Put fails with ErrKindMismatch
// rather than creating a second, coexisting row.
func (s *Store) Put(id, kind, payload string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("docstore: put %s/%s: begin: %w", kind, id, err)
	}
	defer tx.Rollback()

	var existingKind string
	err = tx.QueryRow(`SELECT kind FROM documents WHERE id = ? AND kind != ? LIMIT 1`, id, kind).Scan(&existingKind)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s already exists under kind %s, not %s", ErrKindMismatch, id, existingKind, kind)
	case err != sql.ErrNoRows:
		return fmt.Errorf("docstore: put %s/%s: check existing kind: %w", kind, id, err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO documents (id, kind, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, kind) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		id, kind, payload, now, now)
	if err != nil {
		return fmt.Errorf("docstore: put %s/%s: %w", kind, id, err)
	}
	return tx.Commit()
}

// Get returns the document stored under id, if its kind matches expectedKind.
// A row that exists under a different kind is reported as ErrKindMismatch,
// not silently skipped or conflated with "no row".
func (s *Store) Get(id, expectedKind string) (*Document, error) {
	rows, err := s.db.Query(`SELECT kind, payload, created_at, updated_at FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s: %w", id, err)
	}
	defer rows.Close()

	found := false
	var doc Document
	var mismatchedKind string
	for rows.Next() {
		var kind, payload string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&kind, &payload, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan %s: %w", id, err)
		}
		if kind != expectedKind {
			mismatchedKind = kind
			continue
		}
		found = true
		doc = Document{ID: id, Kind: kind, Payload: payload, CreatedAt: createdAt, UpdatedAt: updatedAt}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found {
		return &doc, nil
	}
	if mismatchedKind != "" {
		return nil, fmt.Errorf("%w: %s is stored under kind %s, not %s", ErrKindMismatch, id, mismatchedKind, expectedKind)
	}
	return nil, ErrNotFound
}

// ListByKind returns all documents of kind, ordered by created_at
// descending.
func (s *Store) ListByKind(kind string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, payload, created_at, updated_at FROM documents
		WHERE kind = ? ORDER BY created_at DESC`, kind)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, payload string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &payload, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan list %s: %w", kind, err)
		}
		docs = append(docs, Document{ID: id, Kind: kind, Payload: payload, CreatedAt: createdAt, UpdatedAt: updatedAt})
	}
	return docs, rows.Err()
}

// Delete removes the document under (id, kind). Idempotent: deleting an
// absent document is not an error.
func (s *Store) Delete(id, kind string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ? AND kind = ?`, id, kind)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", kind, id, err)
	}
	return nil
}
