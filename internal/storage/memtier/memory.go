// Package memtier - the in-memory storage tier backend.
//
// What: A map per kind guarded by a reader-writer lock, matching spec
// §4.A's "Memory" backend exactly: Set acquires the writer lock once for
// every (kind, key, value) triple it is given; range iteration copies
// matching entries under a short-lived read lock.
// How: Mirrors tinySQL's MemoryBackend (internal/storage/backend_memory.go)
// in spirit — a trivial, allocation-light adapter — but here it is the
// real backing store rather than a no-op placeholder, since this tier
// owns actual key/value bytes instead of delegating to a DB struct.
package memtier

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/reifydb/reifydb/internal/storage"
)

type table struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Backend is the memory-resident Tier implementation.
type Backend struct {
	mu     sync.Mutex // guards tables map membership only
	tables map[storage.Kind]*table
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{tables: make(map[storage.Kind]*table)}
}

func (b *Backend) table(kind storage.Kind) *table {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[kind]
	if !ok {
		t = &table{data: make(map[string][]byte)}
		b.tables[kind] = t
	}
	return t
}

// Close is a no-op: the memory backend owns no external resources.
func (b *Backend) Close() error { return nil }

func (b *Backend) EnsureTable(_ context.Context, kind storage.Kind) error {
	b.table(kind)
	return nil
}

func (b *Backend) ClearTable(_ context.Context, kind storage.Kind) error {
	t := b.table(kind)
	t.mu.Lock()
	t.data = make(map[string][]byte)
	t.mu.Unlock()
	return nil
}

func (b *Backend) Get(_ context.Context, kind storage.Kind, key []byte) ([]byte, bool, error) {
	t := b.table(kind)
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *Backend) Contains(_ context.Context, kind storage.Kind, key []byte) (bool, error) {
	t := b.table(kind)
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.data[string(key)]
	return ok, nil
}

// Set acquires each affected table's writer lock once and applies every
// write for that table; this is atomic per table and, since tables are
// locked in a stable sorted order, free of cross-table deadlock.
func (b *Backend) Set(_ context.Context, writes []storage.Write) error {
	byKind := make(map[storage.Kind][]storage.Write)
	for _, w := range writes {
		byKind[w.Kind] = append(byKind[w.Kind], w)
	}
	kinds := make([]storage.Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	tables := make([]*table, len(kinds))
	for i, k := range kinds {
		tables[i] = b.table(k)
	}
	for _, t := range tables {
		t.mu.Lock()
	}
	defer func() {
		for _, t := range tables {
			t.mu.Unlock()
		}
	}()

	for i, k := range kinds {
		t := tables[i]
		for _, w := range byKind[k] {
			if w.Value == nil {
				delete(t.data, string(w.Key))
				continue
			}
			cp := make([]byte, len(w.Value))
			copy(cp, w.Value)
			t.data[string(w.Key)] = cp
		}
	}
	return nil
}

func (b *Backend) sortedKeys(t *table, start, end []byte) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		kb := []byte(k)
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Backend) RangeNext(_ context.Context, kind storage.Kind, cursor *storage.Cursor, start, end []byte, batchSize int) (storage.Batch, error) {
	if cursor.Exhausted() {
		return storage.Batch{}, nil
	}
	t := b.table(kind)
	keys := b.sortedKeys(t, start, end)

	idx := 0
	if lower := cursor.LastKey(); cursor.Started() {
		idx = sort.SearchStrings(keys, string(lower))
		if idx < len(keys) && keys[idx] == string(lower) {
			idx++
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]storage.Entry, 0, batchSize)
	i := idx
	for ; i < len(keys) && len(entries) < batchSize; i++ {
		entries = append(entries, storage.Entry{Key: []byte(keys[i]), Value: t.data[keys[i]]})
	}
	hasMore := i < len(keys)
	var lastKey []byte
	if len(entries) > 0 {
		lastKey = entries[len(entries)-1].Key
	}
	cursor.Advance(lastKey, !hasMore)
	return storage.Batch{Entries: entries, HasMore: hasMore}, nil
}

func (b *Backend) RangeRevNext(_ context.Context, kind storage.Kind, cursor *storage.Cursor, start, end []byte, batchSize int) (storage.Batch, error) {
	if cursor.Exhausted() {
		return storage.Batch{}, nil
	}
	t := b.table(kind)
	keys := b.sortedKeys(t, start, end)

	upper := len(keys)
	if lower := cursor.LastKey(); cursor.Started() {
		upper = sort.SearchStrings(keys, string(lower))
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]storage.Entry, 0, batchSize)
	i := upper - 1
	for ; i >= 0 && len(entries) < batchSize; i-- {
		entries = append(entries, storage.Entry{Key: []byte(keys[i]), Value: t.data[keys[i]]})
	}
	hasMore := i >= 0
	var lastKey []byte
	if len(entries) > 0 {
		lastKey = entries[len(entries)-1].Key
	}
	cursor.Advance(lastKey, !hasMore)
	return storage.Batch{Entries: entries, HasMore: hasMore}, nil
}
