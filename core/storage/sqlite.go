package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tetherlab/tether/core/fault"
)

// SQLiteStore implements Store with SQLite. Each component gets its own
// table with a monotonic sequence column so scans preserve insertion order;
// the document body is stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at path. Pass
// ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// EnsureCollection creates the component's table if it does not exist.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, component string) error {
	createSQL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  doc TEXT NOT NULL
)`, tableName(component))
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table for %s: %w", component, err)
	}
	return nil
}

// Put upserts a record, merging attrs over any stored attributes. The merge
// is a read-modify-write under the store lock; concurrent invocations
// against the same record are last-write-wins by design of the layer above.
func (s *SQLiteStore) Put(ctx context.Context, component, id string, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ctx, component, id)
	if err != nil && !fault.IsNotFound(err) {
		return err
	}

	merged := attrs
	if existing != nil {
		merged = existing
		for k, v := range attrs {
			merged[k] = v
		}
	}

	doc, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", component, id, err)
	}

	upsertSQL := fmt.Sprintf(
		`INSERT INTO %s (id, doc) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, tableName(component))
	if _, err := s.db.ExecContext(ctx, upsertSQL, id, string(doc)); err != nil {
		return fmt.Errorf("put document %s/%s: %w", component, id, err)
	}
	return nil
}

// Get retrieves a record's attributes by identifier.
func (s *SQLiteStore) Get(ctx context.Context, component, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, component, id)
}

func (s *SQLiteStore) get(ctx context.Context, component, id string) (map[string]any, error) {
	querySQL := fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", tableName(component))
	var doc string
	err := s.db.QueryRowContext(ctx, querySQL, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound(component, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", component, id, err)
	}

	var attrs map[string]any
	if err := json.Unmarshal([]byte(doc), &attrs); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", component, id, err)
	}
	return attrs, nil
}

// Delete removes a record by identifier.
func (s *SQLiteStore) Delete(ctx context.Context, component, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(component))
	res, err := s.db.ExecContext(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", component, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", component, id, err)
	}
	if affected == 0 {
		return fault.NotFound(component, id)
	}
	return nil
}

// Scan returns all records of a component in insertion order.
func (s *SQLiteStore) Scan(ctx context.Context, component string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scanSQL := fmt.Sprintf("SELECT id, doc FROM %s ORDER BY seq", tableName(component))
	rows, err := s.db.QueryContext(ctx, scanSQL)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", component, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", component, err)
		}
		var attrs map[string]any
		if err := json.Unmarshal([]byte(doc), &attrs); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", component, id, err)
		}
		records = append(records, Record{ID: id, Attributes: attrs})
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// tableName derives a quoted, case-preserving table name for a component.
func tableName(component string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, component)
	return `"doc_` + sanitized + `"`
}
