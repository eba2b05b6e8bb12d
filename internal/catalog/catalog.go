package catalog

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/reifydb/reifydb/internal/diagnostic"
	"github.com/reifydb/reifydb/internal/mvcc"
)

type versionedEntry struct {
	version mvcc.Version
	def     *Definition // nil means "dropped at this version"
}

type entityChain struct {
	mu      sync.RWMutex
	entries []versionedEntry // ascending by version
}

func (c *entityChain) append(v mvcc.Version, def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, versionedEntry{version: v, def: def})
}

func (c *entityChain) at(v mvcc.Version) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].version > v })
	if i == 0 {
		return nil, false
	}
	e := c.entries[i-1]
	return e.def, e.def != nil
}

type nameKey struct {
	namespace ID
	kind      EntityKind
	name      string
}

// Catalog is the materialized index: per-entity versioned chains plus a
// name->id index, both readable at any snapshot version.
type Catalog struct {
	mu       sync.RWMutex
	byID     map[ID]*entityChain
	byName   map[nameKey]ID // latest-known mapping; resolved against byID's chain for staleness
	nextID   atomic.Uint64
}

// New creates an empty catalog. Namespace id 0 is reserved for the root
// namespace that all top-level namespaces live under.
func New() *Catalog {
	c := &Catalog{byID: make(map[ID]*entityChain), byName: make(map[nameKey]ID)}
	c.nextID.Store(0)
	return c
}

// NextID allocates a fresh entity id. Called by an Overlay when staging a
// Create.
func (c *Catalog) NextID() ID { return ID(c.nextID.Add(1)) }

// LookupID resolves a name within a namespace as of snapshot version v,
// consulting only the materialized view (callers needing overlay-aware
// resolution should use Overlay.Lookup instead).
func (c *Catalog) LookupID(namespace ID, kind EntityKind, name string, v mvcc.Version) (ID, bool) {
	c.mu.RLock()
	id, ok := c.byName[nameKey{namespace, kind, name}]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	def, alive := c.Get(id, v)
	if !alive || def == nil {
		return 0, false
	}
	return id, true
}

// Get returns the definition for id as visible at v, or (nil, false) if
// the id is unknown or was dropped at or before v.
func (c *Catalog) Get(id ID, v mvcc.Version) (*Definition, bool) {
	c.mu.RLock()
	chain, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return chain.at(v)
}

// commit applies one coalesced overlay entry to the materialized view at
// version v. Called only by Overlay.Commit.
func (c *Catalog) commit(v mvcc.Version, id ID, kind EntityKind, namespace ID, name string, def *Definition) {
	c.mu.Lock()
	chain, ok := c.byID[id]
	if !ok {
		chain = &entityChain{}
		c.byID[id] = chain
	}
	key := nameKey{namespace, kind, name}
	if def != nil {
		c.byName[key] = id
	} else {
		if c.byName[key] == id {
			delete(c.byName, key)
		}
	}
	c.mu.Unlock()
	chain.append(v, def)
}

// ErrDeletedInOverlay is returned by overlay-aware lookups when the name
// was dropped earlier in the same transaction, distinguishing it from an
// ordinary NotFound (spec §4.E, §7) both by sentinel identity and by
// diagnostic.Kind (diagnostic.Is(err, diagnostic.KindDeletedInOverlay)).
var ErrDeletedInOverlay = diagnostic.DeletedInOverlay("entity deleted earlier in this transaction")
