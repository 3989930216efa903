package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists documents to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite document store.
// The path should be a file path (e.g., "./flowdoc.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database lives and dies with its connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS revisions (
			doc_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (doc_id, revision)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revisions (doc_id, revision, timestamp, data)
		VALUES (
			?,
			COALESCE((SELECT MAX(revision) FROM revisions WHERE doc_id = ?), 0) + 1,
			?, ?
		)
	`, id, id, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) ([]byte, error) {
	return s.loadRow(ctx, `
		SELECT data FROM revisions
		WHERE doc_id = ?
		ORDER BY revision DESC
		LIMIT 1
	`, id)
}

// LoadRevision implements Store.
func (s *SQLiteStore) LoadRevision(ctx context.Context, id string, rev int) ([]byte, error) {
	return s.loadRow(ctx, `
		SELECT data FROM revisions
		WHERE doc_id = ? AND revision = ?
	`, id, rev)
}

func (s *SQLiteStore) loadRow(ctx context.Context, query string, args ...any) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	return s.query(ctx, `
		SELECT r.doc_id, r.revision, r.timestamp, LENGTH(r.data)
		FROM revisions r
		JOIN (
			SELECT doc_id, MAX(revision) AS revision FROM revisions GROUP BY doc_id
		) latest ON latest.doc_id = r.doc_id AND latest.revision = r.revision
		ORDER BY r.doc_id
	`)
}

// Revisions implements Store.
func (s *SQLiteStore) Revisions(ctx context.Context, id string) ([]Info, error) {
	return s.query(ctx, `
		SELECT doc_id, revision, timestamp, LENGTH(data)
		FROM revisions
		WHERE doc_id = ?
		ORDER BY revision
	`, id)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var timestamp string
		if err := rows.Scan(&info.DocID, &info.Revision, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan revision info: %w", err)
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM revisions WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, id string, keep int) (int, error) {
	keep = clampKeep(keep)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM revisions
		WHERE doc_id = ? AND revision NOT IN (
			SELECT revision FROM revisions
			WHERE doc_id = ?
			ORDER BY revision DESC
			LIMIT ?
		)
	`, id, id, keep)
	if err != nil {
		return 0, fmt.Errorf("prune document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune document: %w", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
