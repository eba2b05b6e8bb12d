// Package catalog - name->id resolution with per-version materialization
// and in-transaction overlays (spec §4.E).
//
// What: Namespaces, tables, views, flows, ring buffers, dictionaries,
// procedures, and handlers, each with a stable integer id and a name
// unique within its parent namespace. Definitions are versioned; a
// transaction sees the catalog at its snapshot version plus its own
// pending changes.
// How: Grounded on tinySQL's CatalogManager (internal/storage/catalog.go)
// for the "map of name-keyed metadata guarded by one RWMutex" shape, but
// generalized: tinySQL's maps hold the live value only, while spec §4.E
// requires a versioned chain per id (so a reader at an old snapshot still
// sees the old definition) plus a per-transaction overlay that coalesces
// create/update/drop before it ever reaches the materialized view.
package catalog

import "fmt"

// EntityKind enumerates the catalog's entity families.
type EntityKind byte

const (
	KindNamespace EntityKind = iota
	KindTable
	KindView
	KindFlow
	KindRingBuffer
	KindDictionary
	KindProcedure
	KindHandler
)

func (k EntityKind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindFlow:
		return "flow"
	case KindRingBuffer:
		return "ring_buffer"
	case KindDictionary:
		return "dictionary"
	case KindProcedure:
		return "procedure"
	case KindHandler:
		return "handler"
	default:
		return fmt.Sprintf("entity(%d)", byte(k))
	}
}

// ID is a stable integer identifier for one catalog entity.
type ID uint64

// Definition is one versioned snapshot of an entity. Payload is
// kind-specific (e.g. a gob-encoded TableDef, ViewDef, or flow.Graph) and
// opaque to this package; catalog only orders and names entities.
type Definition struct {
	ID          ID
	Kind        EntityKind
	NamespaceID ID
	Name        string
	Payload     []byte
}

// TableDef is the Payload shape for KindTable entities.
type TableDef struct {
	Columns    []ColumnDef
	PrimaryKey []string
}

// ColumnDef describes one table column.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
}

// ViewKind distinguishes deferred from transactional views (spec §4.G).
type ViewKind byte

const (
	ViewTransactional ViewKind = iota
	ViewDeferred
)

// ViewDef is the Payload shape for KindView entities.
type ViewDef struct {
	Columns []ColumnDef
	Kind    ViewKind
	FlowID  ID // the flow materializing this view, 0 if none yet
}
