// Overlay - per-Command-transaction catalog change log (spec §4.E).
//
// What: A change log keyed by entity id, overlaying the materialized
// catalog. Coalescing rules: create+drop in one transaction collapses to
// nothing; update+update collapses to a single update with the original
// pre-image and the latest post-image; drop-after-create collapses to
// nothing. Name lookups check the overlay first, then handle
// deleted-in-overlay (returns ErrDeletedInOverlay) before falling back to
// the materialized view.
package catalog

import (
	"fmt"

	"github.com/reifydb/reifydb/internal/metric"
	"github.com/reifydb/reifydb/internal/mvcc"
)

// op is the logical operation an overlay entry records.
type op byte

const (
	opCreate op = iota
	opUpdate
	opDrop
)

type logEntry struct {
	kind      EntityKind
	namespace ID
	name      string // current name (post-image name, or pre-image name for a pure drop)
	pre       *Definition
	post      *Definition // nil for a drop
	op        op
}

// Overlay is the transaction-local catalog change log. Not safe for
// concurrent use: an Overlay belongs to exactly one Command transaction.
type Overlay struct {
	catalog *Catalog
	base    mvcc.Version
	log     map[ID]*logEntry
}

// NewOverlay creates an overlay reading the catalog as of snapshot base.
func NewOverlay(catalog *Catalog, base mvcc.Version) *Overlay {
	return &Overlay{catalog: catalog, base: base, log: make(map[ID]*logEntry)}
}

// Lookup resolves a name, checking the overlay first: a name dropped in
// this transaction reports ErrDeletedInOverlay; a name created/updated in
// this transaction resolves to the overlay's id; otherwise it falls back
// to the materialized view at the overlay's base snapshot.
func (o *Overlay) Lookup(namespace ID, kind EntityKind, name string) (ID, *Definition, error) {
	for id, e := range o.log {
		if e.kind != kind || e.namespace != namespace || e.name != name {
			continue
		}
		if e.op == opDrop {
			return 0, nil, ErrDeletedInOverlay
		}
		return id, e.post, nil
	}
	id, ok := o.catalog.LookupID(namespace, kind, name, o.base)
	if !ok {
		return 0, nil, nil
	}
	def, _ := o.catalog.Get(id, o.base)
	return id, def, nil
}

// Create stages a new entity. Returns the freshly allocated id.
func (o *Overlay) Create(kind EntityKind, namespace ID, name string, payload []byte) ID {
	id := o.catalog.NextID()
	def := &Definition{ID: id, Kind: kind, NamespaceID: namespace, Name: name, Payload: payload}
	o.log[id] = &logEntry{kind: kind, namespace: namespace, name: name, pre: nil, post: def, op: opCreate}
	metric.CatalogOverlayEntries.Set(float64(len(o.log)))
	return id
}

// Update stages a change to an existing entity. pre is the definition as
// currently visible (through the overlay or the materialized view); the
// coalescing rule keeps the *original* pre across repeated updates within
// one transaction.
func (o *Overlay) Update(id ID, pre *Definition, post *Definition) {
	if existing, ok := o.log[id]; ok {
		switch existing.op {
		case opCreate:
			// create then update: still a create, just with the latest payload.
			existing.post = post
			return
		case opUpdate:
			// update+update: keep the original pre, take the latest post.
			existing.post = post
			existing.name = post.Name
			return
		case opDrop:
			// update after drop should never happen (name already gone);
			// callers resolve via Lookup first, so this is an invariant slip.
			existing.op = opUpdate
			existing.pre = pre
			existing.post = post
			existing.name = post.Name
			return
		}
	}
	o.log[id] = &logEntry{kind: post.Kind, namespace: post.NamespaceID, name: post.Name, pre: pre, post: post, op: opUpdate}
}

// Drop stages a deletion. If the entity was created earlier in this same
// transaction, the pair coalesces to nothing (the entity never existed
// externally). Otherwise it records a drop against the given pre-image.
func (o *Overlay) Drop(id ID, pre *Definition) {
	if existing, ok := o.log[id]; ok {
		if existing.op == opCreate {
			delete(o.log, id) // create+drop in one transaction: invisible externally
			return
		}
		existing.op = opDrop
		existing.post = nil
		return
	}
	o.log[id] = &logEntry{kind: pre.Kind, namespace: pre.NamespaceID, name: pre.Name, pre: pre, post: nil, op: opDrop}
}

// Entries returns the coalesced log entries, for translating into commit
// deltas (package txn/executor) and for Commit.
func (o *Overlay) Entries() map[ID]*logEntry { return o.log }

// Commit applies every coalesced log entry to the materialized view at
// commit version v. Called once, after the owning transaction's commit
// has been made durable by the commit queue.
func (o *Overlay) Commit(v mvcc.Version) {
	for id, e := range o.log {
		o.catalog.commit(v, id, e.kind, e.namespace, e.name, e.post)
	}
	metric.CatalogOverlayEntries.Set(0)
}

func (o *Overlay) String() string {
	return fmt.Sprintf("overlay(base=%d, entries=%d)", o.base, len(o.log))
}
