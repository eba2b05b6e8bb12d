// Package sqlitetier - the SQLite storage tier backend.
//
// What: One table per Kind, `(key BLOB PRIMARY KEY, value BLOB)`; Set runs
// as a single transaction spanning every affected table; range iteration
// uses keyset pagination on the primary key, matching spec §4.A exactly.
// How: Opens modernc.org/sqlite (the pure-Go driver already in the pack's
// dependency set, reused here directly instead of through tinySQL's
// database/sql driver shim in internal/driver, since this package *is* a
// storage tier rather than a client of one) via database/sql. Table names
// are derived from the Kind string with a safe identifier transform so
// arbitrary Source(id)/Operator(id) kinds still map onto legal SQLite
// identifiers.
// Why: SQLite gives reifydb a durable, crash-safe tier without writing a
// page manager, the same trade tinySQL itself makes for ModeDisk.
package sqlitetier

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/reifydb/reifydb/internal/storage"
)

// Backend is the SQLite-backed Tier implementation.
type Backend struct {
	mu sync.Mutex // serializes Set's cross-table transactions
	db *sql.DB

	tablesMu sync.RWMutex
	tables   map[storage.Kind]string // kind -> quoted sqlite table name
}

// Open opens (creating if necessary) a SQLite database file at path. Use
// ":memory:" for an ephemeral in-process database.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitetier: open %s: %w", path, err)
	}
	// The tier's single-writer contract (spec §4.C) means reifydb never
	// needs more than one writer connection; SQLite itself still allows
	// concurrent readers against that connection's snapshot.
	db.SetMaxOpenConns(1)
	return &Backend{db: db, tables: make(map[storage.Kind]string)}, nil
}

func tableNameFor(kind storage.Kind) string {
	sum := sha1.Sum([]byte(kind))
	return "kv_" + hex.EncodeToString(sum[:8])
}

func (b *Backend) tableName(kind storage.Kind) string {
	b.tablesMu.RLock()
	name, ok := b.tables[kind]
	b.tablesMu.RUnlock()
	if ok {
		return name
	}
	name = tableNameFor(kind)
	b.tablesMu.Lock()
	b.tables[kind] = name
	b.tablesMu.Unlock()
	return name
}

func (b *Backend) EnsureTable(ctx context.Context, kind storage.Kind) error {
	name := b.tableName(kind)
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (key BLOB PRIMARY KEY, value BLOB)`, name))
	if err != nil {
		return fmt.Errorf("sqlitetier: ensure table %s: %w", kind, err)
	}
	return nil
}

func (b *Backend) ClearTable(ctx context.Context, kind storage.Kind) error {
	if err := b.EnsureTable(ctx, kind); err != nil {
		return err
	}
	name := b.tableName(kind)
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, name)); err != nil {
		return fmt.Errorf("sqlitetier: clear table %s: %w", kind, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, kind storage.Kind, key []byte) ([]byte, bool, error) {
	name := b.tableName(kind)
	var value []byte
	err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %q WHERE key = ?`, name), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitetier: get %s: %w", kind, err)
	}
	return value, true, nil
}

func (b *Backend) Contains(ctx context.Context, kind storage.Kind, key []byte) (bool, error) {
	_, ok, err := b.Get(ctx, kind, key)
	return ok, err
}

// Set applies every write across every affected table inside one SQLite
// transaction, so the whole batch is atomic even though it may span
// several kinds (and therefore several physical tables).
func (b *Backend) Set(ctx context.Context, writes []storage.Write) error {
	if len(writes) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	kindsSeen := make(map[storage.Kind]bool)
	for _, w := range writes {
		kindsSeen[w.Kind] = true
	}
	for k := range kindsSeen {
		if err := b.EnsureTable(ctx, k); err != nil {
			return err
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitetier: begin: %w", err)
	}
	for _, w := range writes {
		name := b.tableName(w.Kind)
		if w.Value == nil {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, name), w.Key); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("sqlitetier: delete %s: %w", w.Kind, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %q (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			name), w.Key, w.Value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlitetier: upsert %s: %w", w.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitetier: commit: %w", err)
	}
	return nil
}

func (b *Backend) RangeNext(ctx context.Context, kind storage.Kind, cursor *storage.Cursor, start, end []byte, batchSize int) (storage.Batch, error) {
	if cursor.Exhausted() {
		return storage.Batch{}, nil
	}
	name := b.tableName(kind)

	var query strings.Builder
	args := make([]any, 0, 4)
	fmt.Fprintf(&query, `SELECT key, value FROM %q WHERE 1=1`, name)
	if start != nil {
		query.WriteString(` AND key >= ?`)
		args = append(args, start)
	}
	if end != nil {
		query.WriteString(` AND key < ?`)
		args = append(args, end)
	}
	if cursor.Started() {
		query.WriteString(` AND key > ?`)
		args = append(args, cursor.LastKey())
	}
	query.WriteString(` ORDER BY key ASC LIMIT ?`)
	args = append(args, batchSize+1)

	return b.runRangeQuery(ctx, query.String(), args, batchSize, cursor, false)
}

func (b *Backend) RangeRevNext(ctx context.Context, kind storage.Kind, cursor *storage.Cursor, start, end []byte, batchSize int) (storage.Batch, error) {
	if cursor.Exhausted() {
		return storage.Batch{}, nil
	}
	name := b.tableName(kind)

	var query strings.Builder
	args := make([]any, 0, 4)
	fmt.Fprintf(&query, `SELECT key, value FROM %q WHERE 1=1`, name)
	if start != nil {
		query.WriteString(` AND key >= ?`)
		args = append(args, start)
	}
	if end != nil {
		query.WriteString(` AND key < ?`)
		args = append(args, end)
	}
	if cursor.Started() {
		query.WriteString(` AND key < ?`)
		args = append(args, cursor.LastKey())
	}
	query.WriteString(` ORDER BY key DESC LIMIT ?`)
	args = append(args, batchSize+1)

	return b.runRangeQuery(ctx, query.String(), args, batchSize, cursor, true)
}

func (b *Backend) runRangeQuery(ctx context.Context, query string, args []any, batchSize int, cursor *storage.Cursor, reverse bool) (storage.Batch, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("sqlitetier: range query: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.Entry, 0, batchSize)
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return storage.Batch{}, fmt.Errorf("sqlitetier: scan: %w", err)
		}
		entries = append(entries, storage.Entry{Key: key, Value: value})
	}
	if err := rows.Err(); err != nil {
		return storage.Batch{}, fmt.Errorf("sqlitetier: rows: %w", err)
	}

	hasMore := len(entries) > batchSize
	if hasMore {
		entries = entries[:batchSize]
	}
	var lastKey []byte
	if len(entries) > 0 {
		lastKey = entries[len(entries)-1].Key
	}
	cursor.Advance(lastKey, !hasMore)
	_ = reverse
	return storage.Batch{Entries: entries, HasMore: hasMore}, nil
}

// Close closes the underlying SQLite connection.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("sqlitetier: close: %w", err)
	}
	return nil
}
