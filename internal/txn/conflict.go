// Conflict detection (spec §4.D): hash-based read/write sets plus a
// conservative read-all flag, checked against a retained window of
// recently-committed transactions.
package txn

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/reifydb/reifydb/internal/mvcc"
)

func fingerprint(key []byte) uint64 { return xxhash.Sum64(key) }

// conflictSet is one transaction's read/write fingerprints. A point read
// marks the key's fingerprint as read; a range/scan conservatively sets
// readAll instead of trying to enumerate every key it could have touched.
type conflictSet struct {
	reads   map[uint64]struct{}
	writes  map[uint64]struct{}
	readAll bool
}

func newConflictSet() *conflictSet {
	return &conflictSet{reads: make(map[uint64]struct{}), writes: make(map[uint64]struct{})}
}

func (c *conflictSet) recordRead(key []byte) {
	c.reads[fingerprint(key)] = struct{}{}
}

func (c *conflictSet) recordWrite(key []byte) {
	fp := fingerprint(key)
	c.writes[fp] = struct{}{}
	// A write is also a read of the prior value: this is what makes two
	// blind writes to the same key conflict (spec §8 scenario 2), since
	// the spec's literal conflict rule only intersects read-vs-write sets.
	c.reads[fp] = struct{}{}
}

func (c *conflictSet) markReadAll() { c.readAll = true }

// intersectsWrites reports whether c's reads (or its read-all flag against
// any write at all) overlap other's writes.
func (c *conflictSet) intersectsWrites(other *conflictSet) bool {
	if c.readAll && len(other.writes) > 0 {
		return true
	}
	if other.readAll && len(c.writes) > 0 {
		return true
	}
	if len(c.reads) == 0 || len(other.writes) == 0 {
		return false
	}
	small, big := c.reads, other.writes
	if len(big) < len(small) {
		small, big = big, small
	}
	for fp := range small {
		if _, ok := big[fp]; ok {
			return true
		}
	}
	return false
}

// committedRecord is what the registry retains about a transaction once it
// has committed, for validating later-committing concurrent transactions.
type committedRecord struct {
	snapshotVersion mvcc.Version
	commitVersion   mvcc.Version
	set             *conflictSet
}

// registry retains committed records back to the oldest active snapshot,
// since only transactions whose commit window could overlap a still-open
// snapshot matter for conflict checking.
type registry struct {
	mu      sync.Mutex
	records []committedRecord
}

func newRegistry() *registry { return &registry{} }

func (r *registry) record(rec committedRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// conflicts reports whether any retained committed transaction that
// committed after snapshotVersion has a write set overlapping cs.
func (r *registry) conflicts(snapshotVersion mvcc.Version, cs *conflictSet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.commitVersion <= snapshotVersion {
			continue
		}
		if cs.intersectsWrites(rec.set) {
			return true
		}
	}
	return false
}

// pruneBelow drops retained records that committed strictly before floor:
// no still-active transaction can have a snapshot version below floor, so
// they can no longer be relevant to a future conflict check.
func (r *registry) pruneBelow(floor mvcc.Version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.commitVersion >= floor {
			kept = append(kept, rec)
		}
	}
	r.records = kept
}
