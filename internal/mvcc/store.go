// Package mvcc - the multi-version store (spec §4.B).
//
// What: Per-key version chains over the storage tier. Each logical key
// keeps a sorted map version -> Option<values>; reads at a snapshot
// version bisect-right for the greatest version <= the snapshot.
// How: A Container guards one key's chain with its own mutex so that
// concurrent writers to different keys never contend; Store indexes
// containers by key and shards the index across buckets (spec §5:
// "sharded skip-map") to bound lock contention on the index itself.
// Why: Keeping each key's chain independently lockable is what lets
// readers proceed in parallel against writers serialized only by the
// single-writer commit queue (package commit).
package mvcc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reifydb/reifydb/internal/storage"
)

// Version is the spec's CommitVersion: a monotonic u64 tagging every
// value, CDC record, catalog change, and flow snapshot.
type Version uint64

// Entry is one version of a key: either a value (Set) or a tombstone
// (absent Values, present=false).
type entry struct {
	version Version
	present bool
	value   []byte
}

// Container is the sorted version chain for one logical key.
type Container struct {
	mu      sync.RWMutex
	entries []entry // ascending by version
}

func (c *Container) insert(version Version, value []byte, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Commits arrive through the single-writer queue in strictly
	// increasing version order per key, so appending keeps the chain
	// sorted; a defensive insert-sort guards against any future caller
	// that violates that assumption.
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].version >= version })
	e := entry{version: version, present: present, value: value}
	if i == len(c.entries) {
		c.entries = append(c.entries, e)
		return
	}
	if c.entries[i].version == version {
		c.entries[i] = e
		return
	}
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
}

// visibleAt returns the entry with the greatest version <= at, if any.
func (c *Container) visibleAt(at Version) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].version > at })
	if i == 0 {
		return entry{}, false
	}
	return c.entries[i-1], true
}

// pruneBelow drops every entry with version strictly less than floor
// except the newest of them, and never touches entries at or above floor
// (so visibility at any version >= floor is unaffected).
func (c *Container) pruneBelow(floor Version) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return 0
	}
	keepFrom := 0
	for i, e := range c.entries {
		if e.version >= floor {
			break
		}
		keepFrom = i
	}
	// keepFrom now indexes the newest entry strictly below floor (if any
	// entries are below floor at all); keep that one plus everything >= floor.
	if c.entries[keepFrom].version >= floor {
		return 0
	}
	removed := keepFrom
	c.entries = c.entries[keepFrom:]
	return removed
}

func (c *Container) empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) == 0
}

const shardCount = 64

// Store is the multi-version store built atop a storage.Tier. It holds an
// in-memory index of Containers per key (the tier itself only durably
// persists the latest materialization via package commit) sharded to
// bound lock contention, per spec §5.
type Store struct {
	tier     storage.Tier
	tierKind storage.Kind

	shards [shardCount]struct {
		mu         sync.Mutex
		containers map[string]*Container
	}
}

// NewStore creates a multi-version store over tier, using tierKind as the
// tier-level Kind all of this store's keys live under (e.g. storage.KindMulti).
func NewStore(tier storage.Tier, tierKind storage.Kind) *Store {
	s := &Store{tier: tier, tierKind: tierKind}
	for i := range s.shards {
		s.shards[i].containers = make(map[string]*Container)
	}
	return s
}

func shardFor(key []byte) int {
	var h uint32 = 2166136261
	for _, b := range key {
		h ^= uint32(b)
		h *= 16777619
	}
	return int(h % shardCount)
}

func (s *Store) container(key []byte) *Container {
	shard := &s.shards[shardFor(key)]
	k := string(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	c, ok := shard.containers[k]
	if !ok {
		c = &Container{}
		shard.containers[k] = c
	}
	return c
}

// Apply installs one committed delta's effect into the in-memory chain.
// Called by the commit queue (package commit) while it also writes the
// durable materialization to the tier; never called directly by readers.
func (s *Store) Apply(version Version, key []byte, value []byte, present bool) {
	s.container(key).insert(version, value, present)
}

// Get returns the value visible at version v, or (nil, false) if the key
// is absent or its latest visible entry is a tombstone.
func (s *Store) Get(_ context.Context, key []byte, v Version) ([]byte, bool, error) {
	c := s.container(key)
	e, ok := c.visibleAt(v)
	if !ok || !e.present {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Contains reports whether key has a non-tombstone entry visible at v.
func (s *Store) Contains(ctx context.Context, key []byte, v Version) (bool, error) {
	_, ok, err := s.Get(ctx, key, v)
	return ok, err
}

// RangeResult is one key visible at a given snapshot version.
type RangeResult struct {
	Key   []byte
	Value []byte
}

// Range iterates the keys in [start, end) whose entry visible at v is
// non-tombstone, in ascending key order. It merges sorted batches from the
// tier with the version-resolution step and never materializes the whole
// range: callers drive it with repeated RangeNext calls via the returned
// iterator function, matching spec §4.B's streaming requirement.
func (s *Store) Range(ctx context.Context, start, end []byte, v Version, batchSize int) func() ([]RangeResult, bool, error) {
	cursor := &storage.Cursor{}
	done := false
	return func() ([]RangeResult, bool, error) {
		if done {
			return nil, false, nil
		}
		out := make([]RangeResult, 0, batchSize)
		for len(out) < batchSize {
			batch, err := s.tier.RangeNext(ctx, s.tierKind, cursor, start, end, batchSize)
			if err != nil {
				return nil, false, fmt.Errorf("mvcc: range: %w", err)
			}
			for _, e := range batch.Entries {
				c := s.container(e.Key)
				ve, ok := c.visibleAt(v)
				if !ok || !ve.present {
					continue
				}
				out = append(out, RangeResult{Key: e.Key, Value: ve.value})
			}
			if !batch.HasMore {
				done = true
				break
			}
			if cursor.Exhausted() {
				done = true
				break
			}
		}
		return out, !done, nil
	}
}

// RangeRev is Range in descending key order.
func (s *Store) RangeRev(ctx context.Context, start, end []byte, v Version, batchSize int) func() ([]RangeResult, bool, error) {
	cursor := &storage.Cursor{}
	done := false
	return func() ([]RangeResult, bool, error) {
		if done {
			return nil, false, nil
		}
		out := make([]RangeResult, 0, batchSize)
		for len(out) < batchSize {
			batch, err := s.tier.RangeRevNext(ctx, s.tierKind, cursor, start, end, batchSize)
			if err != nil {
				return nil, false, fmt.Errorf("mvcc: range rev: %w", err)
			}
			for _, e := range batch.Entries {
				c := s.container(e.Key)
				ve, ok := c.visibleAt(v)
				if !ok || !ve.present {
					continue
				}
				out = append(out, RangeResult{Key: e.Key, Value: ve.value})
			}
			if !batch.HasMore {
				done = true
				break
			}
			if cursor.Exhausted() {
				done = true
				break
			}
		}
		return out, !done, nil
	}
}
