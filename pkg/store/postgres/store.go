package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/boxkeeper/pkg/store"
)

// Compile-time interface check.
var _ store.RecordStore = (*Store)(nil)

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// Store is the PostgreSQL record store. It implements [store.RecordStore]
// directly and hands out vector indexes via [Store.Index].
//
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, registers
// pgvector types on every connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Index returns the vector index for namespace, sharing this store's pool.
func (s *Store) Index(namespace string) *VectorIndex {
	return &VectorIndex{pool: s.pool, namespace: namespace}
}

// Ping checks connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ListBoxes implements [store.RecordStore].
func (s *Store) ListBoxes(ctx context.Context) ([]store.Box, error) {
	const q = `SELECT id, name, created_at FROM boxes ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list boxes: %w", err)
	}
	boxes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Box, error) {
		var b store.Box
		err := row.Scan(&b.ID, &b.Name, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan boxes: %w", err)
	}
	return boxes, nil
}

// ListItems implements [store.RecordStore].
func (s *Store) ListItems(ctx context.Context) ([]store.Item, error) {
	const q = `
		SELECT id, name, canonical_name, quantity, box_id, created_at
		FROM   items
		ORDER  BY created_at, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Item, error) {
		var it store.Item
		err := row.Scan(&it.ID, &it.Name, &it.CanonicalName, &it.Quantity, &it.BoxID, &it.CreatedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan items: %w", err)
	}
	return items, nil
}

// CreateBox implements [store.RecordStore].
func (s *Store) CreateBox(ctx context.Context, b store.Box) error {
	const q = `INSERT INTO boxes (id, name, created_at) VALUES ($1, $2, $3)`

	if b.ID == "" {
		return errors.New("postgres store: create box: empty id")
	}
	if _, err := s.pool.Exec(ctx, q, b.ID, b.Name, b.CreatedAt); err != nil {
		return fmt.Errorf("postgres store: create box %s: %w", b.ID, err)
	}
	return nil
}

// AddItem implements [store.RecordStore]. A missing box yields
// [store.ErrNotFound].
func (s *Store) AddItem(ctx context.Context, it store.Item) error {
	const q = `
		INSERT INTO items (id, name, canonical_name, quantity, box_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if it.ID == "" {
		return errors.New("postgres store: add item: empty id")
	}
	_, err := s.pool.Exec(ctx, q, it.ID, it.Name, it.CanonicalName, it.Quantity, it.BoxID, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres store: add item %s: %w", it.ID, missingRef(err))
	}
	return nil
}

// UpdateItemQty implements [store.RecordStore].
func (s *Store) UpdateItemQty(ctx context.Context, id string, qty int) error {
	const q = `UPDATE items SET quantity = $2 WHERE id = $1`

	if qty <= 0 {
		return fmt.Errorf("postgres store: update item %s: quantity %d must be positive", id, qty)
	}
	return s.execOne(ctx, "update item "+id, q, id, qty)
}

// DeleteItem implements [store.RecordStore].
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete item "+id, `DELETE FROM items WHERE id = $1`, id)
}

// DeleteBox implements [store.RecordStore]. The items foreign key is
// ON DELETE RESTRICT, so deleting a non-empty box fails.
func (s *Store) DeleteBox(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete box "+id, `DELETE FROM boxes WHERE id = $1`, id)
}

// MoveItem implements [store.RecordStore].
func (s *Store) MoveItem(ctx context.Context, id, boxID string) error {
	const q = `UPDATE items SET box_id = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, boxID)
	if err != nil {
		return fmt.Errorf("postgres store: move item %s: %w", id, missingRef(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: move item %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, what, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres store: %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: %s: %w", what, store.ErrNotFound)
	}
	return nil
}

// missingRef maps a foreign-key violation to [store.ErrNotFound].
func missingRef(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.Detail)
	}
	return err
}
