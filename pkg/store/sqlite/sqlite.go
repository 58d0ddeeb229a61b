// Package sqlite provides a single-file record store and vector index backed
// by the pure-Go modernc.org/sqlite driver.
//
// Vectors are stored as little-endian float32 blobs and searched by brute
// force, which suits the few thousand items a household inventory holds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/boxkeeper/pkg/store"
)

// schemaVersion is the latest schema version. Bump it when adding migrations.
const schemaVersion = 1

// Compile-time interface check.
var _ store.RecordStore = (*Store)(nil)

// Store is the SQLite record store. All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations. The
// parent directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// migrate applies schema migrations based on PRAGMA user_version.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("sqlite store: read schema version: %w", err)
	}

	if version < 1 {
		const schema = `
		CREATE TABLE IF NOT EXISTS boxes (
		  id          TEXT PRIMARY KEY,
		  name        TEXT NOT NULL,
		  created_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS items (
		  id              TEXT PRIMARY KEY,
		  name            TEXT NOT NULL,
		  canonical_name  TEXT NOT NULL,
		  quantity        INTEGER NOT NULL CHECK (quantity > 0),
		  box_id          TEXT NOT NULL REFERENCES boxes(id) ON DELETE RESTRICT,
		  created_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_box_id ON items(box_id);

		CREATE TABLE IF NOT EXISTS item_vectors (
		  namespace       TEXT NOT NULL,
		  id              TEXT NOT NULL,
		  embedding       BLOB NOT NULL,
		  name            TEXT NOT NULL DEFAULT '',
		  canonical_name  TEXT NOT NULL DEFAULT '',
		  box_id          TEXT NOT NULL DEFAULT '',
		  box_name        TEXT NOT NULL DEFAULT '',
		  PRIMARY KEY (namespace, id)
		);
		`
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("sqlite store: migration 1: %w", err)
		}
	}

	if version < schemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("sqlite store: set schema version: %w", err)
		}
	}
	return nil
}

// Index returns the vector index for namespace, sharing this store's
// database.
func (s *Store) Index(namespace string) *VectorIndex {
	return &VectorIndex{db: s.db, namespace: namespace}
}

// Ping checks the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListBoxes implements [store.RecordStore].
func (s *Store) ListBoxes(ctx context.Context) ([]store.Box, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM boxes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list boxes: %w", err)
	}
	defer rows.Close()

	boxes := []store.Box{}
	for rows.Next() {
		var (
			b  store.Box
			ns int64
		)
		if err := rows.Scan(&b.ID, &b.Name, &ns); err != nil {
			return nil, fmt.Errorf("sqlite store: scan box: %w", err)
		}
		b.CreatedAt = fromNanos(ns)
		boxes = append(boxes, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list boxes: %w", err)
	}
	return boxes, nil
}

// ListItems implements [store.RecordStore].
func (s *Store) ListItems(ctx context.Context) ([]store.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, canonical_name, quantity, box_id, created_at
		FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list items: %w", err)
	}
	defer rows.Close()

	items := []store.Item{}
	for rows.Next() {
		var (
			it store.Item
			ns int64
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.CanonicalName, &it.Quantity, &it.BoxID, &ns); err != nil {
			return nil, fmt.Errorf("sqlite store: scan item: %w", err)
		}
		it.CreatedAt = fromNanos(ns)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list items: %w", err)
	}
	return items, nil
}

// CreateBox implements [store.RecordStore].
func (s *Store) CreateBox(ctx context.Context, b store.Box) error {
	if b.ID == "" {
		return errors.New("sqlite store: create box: empty id")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO boxes (id, name, created_at) VALUES (?, ?, ?)`,
		b.ID, b.Name, b.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite store: create box %s: %w", b.ID, err)
	}
	return nil
}

// AddItem implements [store.RecordStore]. A missing box yields
// [store.ErrNotFound].
func (s *Store) AddItem(ctx context.Context, it store.Item) error {
	if it.ID == "" {
		return errors.New("sqlite store: add item: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, canonical_name, quantity, box_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.Name, it.CanonicalName, it.Quantity, it.BoxID, it.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite store: add item %s: %w", it.ID, missingRef(err))
	}
	return nil
}

// UpdateItemQty implements [store.RecordStore].
func (s *Store) UpdateItemQty(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("sqlite store: update item %s: quantity %d must be positive", id, qty)
	}
	return s.execOne(ctx, "update item "+id, `UPDATE items SET quantity = ? WHERE id = ?`, qty, id)
}

// DeleteItem implements [store.RecordStore].
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete item "+id, `DELETE FROM items WHERE id = ?`, id)
}

// DeleteBox implements [store.RecordStore]. Deleting a non-empty box fails
// on the items foreign key.
func (s *Store) DeleteBox(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete box "+id, `DELETE FROM boxes WHERE id = ?`, id)
}

// MoveItem implements [store.RecordStore].
func (s *Store) MoveItem(ctx context.Context, id, boxID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET box_id = ? WHERE id = ?`, boxID, id)
	if err != nil {
		return fmt.Errorf("sqlite store: move item %s: %w", id, missingRef(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite store: move item %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, what, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sqlite store: %s: %w", what, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite store: %s: %w", what, store.ErrNotFound)
	}
	return nil
}

// missingRef maps a foreign-key failure to [store.ErrNotFound].
func missingRef(err error) error {
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
