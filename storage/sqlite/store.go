// Package sqlite provides a file-backed object-graph store over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/graphstack/schema"
	"github.com/louisbranch/graphstack/storage"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

// Store persists object-graph records in one SQLite database file, one table
// per schema entity.
type Store struct {
	sqlDB  *sql.DB
	path   string
	schema *schema.Schema
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens (or creates) a SQLite store at path and ensures one table per
// schema entity.
func Open(path string, s *schema.Schema) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if s == nil {
		return nil, fmt.Errorf("schema is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureTables(sqlDB, s); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure entity tables: %w", err)
	}
	return &Store{sqlDB: sqlDB, path: cleanPath, schema: s}, nil
}

// ensureTables creates one table per entity. Schema identifiers are
// validated at load time, so interpolating them here is safe.
func ensureTables(sqlDB *sql.DB, s *schema.Schema) error {
	for _, name := range s.EntityNames() {
		createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    attrs TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`, tableName(name))
		if _, err := sqlDB.Exec(createSQL); err != nil {
			return fmt.Errorf("create table for entity %s: %w", name, err)
		}
	}
	return nil
}

func tableName(entity string) string {
	return `"obj_` + entity + `"`
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) entityKnown(entity string) bool {
	_, ok := s.schema.Entity(entity)
	return ok
}

// Apply lands the change set in one transaction.
func (s *Store) Apply(ctx context.Context, cs storage.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ErrStoreClosed
	}
	for _, obj := range cs.Puts {
		if !s.entityKnown(obj.Entity) {
			return fmt.Errorf("put %s/%s: %w", obj.Entity, obj.ID, storage.ErrUnknownEntity)
		}
	}
	for _, ref := range cs.Deletes {
		if !s.entityKnown(ref.Entity) {
			return fmt.Errorf("delete %s/%s: %w", ref.Entity, ref.ID, storage.ErrUnknownEntity)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply transaction: %w", err)
	}
	now := toMillis(time.Now())
	for _, obj := range cs.Puts {
		attrs, err := json.Marshal(obj.Attrs)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode attrs %s/%s: %w", obj.Entity, obj.ID, err)
		}
		upsertSQL := fmt.Sprintf(`
INSERT INTO %s (id, attrs, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET attrs = excluded.attrs, updated_at = excluded.updated_at
`, tableName(obj.Entity))
		if _, err := tx.ExecContext(ctx, upsertSQL, obj.ID, string(attrs), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("put %s/%s: %w", obj.Entity, obj.ID, err)
		}
	}
	for _, ref := range cs.Deletes {
		deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(ref.Entity))
		if _, err := tx.ExecContext(ctx, deleteSQL, ref.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %s/%s: %w", ref.Entity, ref.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply transaction: %w", err)
	}
	return nil
}

// Get returns one object or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Object{}, storage.ErrStoreClosed
	}
	if !s.entityKnown(entity) {
		return storage.Object{}, fmt.Errorf("get %s/%s: %w", entity, id, storage.ErrUnknownEntity)
	}
	querySQL := fmt.Sprintf("SELECT attrs FROM %s WHERE id = ?", tableName(entity))
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, querySQL, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Object{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Object{}, fmt.Errorf("get %s/%s: %w", entity, id, err)
	}
	return decodeObject(entity, id, raw)
}

// List returns every object of one entity ordered by id.
func (s *Store) List(ctx context.Context, entity string) ([]storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, storage.ErrStoreClosed
	}
	if !s.entityKnown(entity) {
		return nil, fmt.Errorf("list %s: %w", entity, storage.ErrUnknownEntity)
	}
	querySQL := fmt.Sprintf("SELECT id, attrs FROM %s ORDER BY id", tableName(entity))
	rows, err := s.sqlDB.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.Object
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", entity, err)
		}
		obj, err := decodeObject(entity, id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", entity, err)
	}
	return out, nil
}

// Count returns the number of objects of one entity.
func (s *Store) Count(ctx context.Context, entity string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, storage.ErrStoreClosed
	}
	if !s.entityKnown(entity) {
		return 0, fmt.Errorf("count %s: %w", entity, storage.ErrUnknownEntity)
	}
	querySQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(entity))
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, querySQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	return n, nil
}

func decodeObject(entity, id, raw string) (storage.Object, error) {
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return storage.Object{}, fmt.Errorf("decode attrs %s/%s: %w", entity, id, err)
	}
	return storage.Object{Entity: entity, ID: id, Attrs: attrs}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

// Destroy closes the store and removes the database file along with its
// WAL and shared-memory siblings.
func (s *Store) Destroy() error {
	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close before destroy: %w", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path+suffix, err)
		}
	}
	return nil
}
