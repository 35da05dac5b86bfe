package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/vovakirdan/ito-server/internal/store"
	"github.com/vovakirdan/ito-server/internal/store/sqlite/migrations"
)

// SQLiteStore implements store.Store on a table of flattened leaves.
type SQLiteStore struct {
	db *sql.DB
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New opens the database at dbPath and applies migrations.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, migrate)
}

// NewWithSetup opens the database and runs setup instead of the migrations.
// Useful for tests to apply schema directly.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes transactions, which Transact relies on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the subtree stored under path.
func (s *SQLiteStore) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if _, err := store.Split(path); err != nil {
		return store.Snapshot{}, err
	}
	return readSubtree(ctx, s.db, path)
}

// Exists reports whether anything is stored under path.
func (s *SQLiteStore) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := store.Split(path); err != nil {
		return false, err
	}

	query := `
		SELECT 1 FROM nodes
		WHERE path = ? OR (path > ? AND path < ?)
		LIMIT 1
	`
	var one int
	err := s.db.QueryRowContext(ctx, query, subtreeArgs(path)...).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Set replaces the subtree under path.
func (s *SQLiteStore) Set(ctx context.Context, path string, value any) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}
	tree, err := store.Normalize(value)
	if err != nil {
		return err
	}
	leaves, err := store.Flatten(path, tree)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return writeSubtree(ctx, tx, parts, leaves)
	})
}

// Update sets each child of path in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}

	type childWrite struct {
		parts  []string
		leaves map[string]json.RawMessage
	}
	writes := make([]childWrite, 0, len(fields))
	for k, v := range fields {
		if err := store.ValidateKey(k); err != nil {
			return err
		}
		tree, err := store.Normalize(v)
		if err != nil {
			return err
		}
		childPath := store.Join(path, k)
		leaves, err := store.Flatten(childPath, tree)
		if err != nil {
			return err
		}
		writes = append(writes, childWrite{
			parts:  append(append([]string{}, parts...), k),
			leaves: leaves,
		})
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, w := range writes {
			if err := writeSubtree(ctx, tx, w.parts, w.leaves); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove deletes the subtree under path.
func (s *SQLiteStore) Remove(ctx context.Context, path string) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return writeSubtree(ctx, tx, parts, nil)
	})
}

// Transact reads path, applies fn and writes the result inside one SQL transaction.
func (s *SQLiteStore) Transact(ctx context.Context, path string, fn store.TxFunc) error {
	parts, err := store.Split(path)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := readSubtree(ctx, tx, path)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		tree, err := store.Normalize(next)
		if err != nil {
			return err
		}
		leaves, err := store.Flatten(path, tree)
		if err != nil {
			return err
		}
		return writeSubtree(ctx, tx, parts, leaves)
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func subtreeArgs(path string) []any {
	// Descendants sort strictly between "path/" and "path0" ('0' follows '/').
	return []any{path, path + store.Separator, path + "0"}
}

func readSubtree(ctx context.Context, q querier, path string) (store.Snapshot, error) {
	query := `
		SELECT path, value FROM nodes
		WHERE path = ? OR (path > ? AND path < ?)
	`
	rows, err := q.QueryContext(ctx, query, subtreeArgs(path)...)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("query subtree: %w", err)
	}
	defer rows.Close()

	leaves := make(map[string]json.RawMessage)
	for rows.Next() {
		var p, value string
		if err := rows.Scan(&p, &value); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan node: %w", err)
		}
		leaves[p] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, fmt.Errorf("iterate nodes: %w", err)
	}

	tree, err := store.Unflatten(path, leaves)
	if err != nil {
		return store.Snapshot{}, err
	}
	raw, err := store.Encode(tree)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Value: raw}, nil
}

func writeSubtree(ctx context.Context, tx *sql.Tx, parts []string, leaves map[string]json.RawMessage) error {
	path := store.Join(parts...)

	deleteSubtree := `
		DELETE FROM nodes
		WHERE path = ? OR (path > ? AND path < ?)
	`
	if _, err := tx.ExecContext(ctx, deleteSubtree, subtreeArgs(path)...); err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}

	// A leaf stored at an ancestor would shadow the new subtree.
	if len(leaves) > 0 {
		for i := 1; i < len(parts); i++ {
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, store.Join(parts[:i]...)); err != nil {
				return fmt.Errorf("delete ancestor leaf: %w", err)
			}
		}
	}

	insert := `
		INSERT INTO nodes (path, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`
	for p, raw := range leaves {
		if _, err := tx.ExecContext(ctx, insert, p, string(raw)); err != nil {
			return fmt.Errorf("insert node %s: %w", p, err)
		}
	}
	return nil
}

var _ store.Store = (*SQLiteStore)(nil)
