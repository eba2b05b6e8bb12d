// Package flow - the incremental dataflow engine (spec §4.G).
//
// What: A FlowGraph is a DAG of operators consuming CDC and producing
// incremental Changes (Insert/Update/Remove diffs with pre/post images).
// Operators hold their own state in memory; it is not written to the
// storage tier (nothing here uses the Operator(id) kind), so it does not
// outlive the process. Operators implement apply (push a Change through)
// and pull (read back materialized state for a set of row numbers).
// How: Grounded on tinySQL's scheduler.go (internal/storage/scheduler.go)
// for the "named background job with its own goroutine, registered once,
// driven by a ticking scheduler" shape, generalized from tinySQL's
// cron-scheduled SQL jobs to CDC-driven incremental recomputation: a
// FlowGraph's Router (package router) feeds it committed Records instead
// of a cron.Schedule firing a SQL statement.
package flow

import (
	"fmt"
	"sync"
)

// NodeId identifies one operator within a FlowGraph's arena. Ids are dense
// indices, not pointers, so the graph never holds operator-to-operator
// back-references (spec §4.G: "arena of nodes with forward edges only").
type NodeId uint64

// NodeKind distinguishes the operator families a FlowGraph can hold.
type NodeKind byte

const (
	KindSource NodeKind = iota
	KindFilter
	KindInnerJoin
	KindAggregate
	KindSinkToView
)

func (k NodeKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindFilter:
		return "filter"
	case KindInnerJoin:
		return "inner_join"
	case KindAggregate:
		return "aggregate"
	case KindSinkToView:
		return "sink_to_view"
	default:
		return fmt.Sprintf("node(%d)", byte(k))
	}
}

// node is one arena slot: an operator plus the ids of the nodes whose
// output feeds it. Edges are recorded only in this forward direction
// (downstream->upstream ids), never the reverse.
type node struct {
	id        NodeId
	kind      NodeKind
	operator  Operator
	upstreams []NodeId
}

// Graph is the FlowGraph arena: every node reachable from one or more
// sources, addressed by dense NodeId, with edges expressed purely as
// index lists (spec §4.G "no back-references").
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeId]*node
	next  uint64

	// sourcePrimitives maps a primitive (table/view) id to the NodeIds of
	// every Source node reading it, resolved by the router when routing an
	// incoming CDC record to the flows it feeds (spec §4.H).
	sourcePrimitives map[uint64][]NodeId
}

// NewGraph creates an empty FlowGraph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeId]*node), sourcePrimitives: make(map[uint64][]NodeId)}
}

// idBinder is implemented by operators that need to learn their own NodeId
// once registered, so ID() can report it.
type idBinder interface{ bind(NodeId) }

// AddSource registers a source node reading primitiveID (a table or view
// id) and returns its NodeId.
func (g *Graph) AddSource(primitiveID uint64, op Operator) NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := NodeId(g.next)
	g.next++
	if b, ok := op.(idBinder); ok {
		b.bind(id)
	}
	g.nodes[id] = &node{id: id, kind: KindSource, operator: op}
	g.sourcePrimitives[primitiveID] = append(g.sourcePrimitives[primitiveID], id)
	return id
}

// AddNode registers a non-source node with the given upstream dependencies.
func (g *Graph) AddNode(kind NodeKind, op Operator, upstreams ...NodeId) NodeId {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := NodeId(g.next)
	g.next++
	if b, ok := op.(idBinder); ok {
		b.bind(id)
	}
	g.nodes[id] = &node{id: id, kind: kind, operator: op, upstreams: upstreams}
	return id
}

// SourcesFor returns the Source NodeIds reading primitiveID.
func (g *Graph) SourcesFor(primitiveID uint64) []NodeId {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]NodeId{}, g.sourcePrimitives[primitiveID]...)
}

// Operator returns the operator registered at id.
func (g *Graph) Operator(id NodeId) (Operator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.operator, true
}

// Downstream returns every node id that lists id among its upstreams, in
// registration order — used to push a Change forward once its source (or
// an upstream operator) has produced it.
func (g *Graph) Downstream(id NodeId) []NodeId {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []NodeId
	for _, n := range g.topoOrder() {
		for _, up := range n.upstreams {
			if up == id {
				out = append(out, n.id)
				break
			}
		}
	}
	return out
}

// topoOrder returns nodes in ascending NodeId order. Ids are assigned
// monotonically, so this is a valid topological order as long as every
// upstream passed to AddNode was created earlier; AddNode does not check it.
func (g *Graph) topoOrder() []*node {
	ids := make([]NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	out := make([]*node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// upstreamSlot returns the index of parent within child's upstream list, or
// -1 if child does not list parent as an upstream (a propagation bug, not a
// user error).
func (g *Graph) upstreamSlot(child, parent NodeId) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[child]
	if !ok {
		return -1
	}
	for i, up := range n.upstreams {
		if up == parent {
			return i
		}
	}
	return -1
}

// Propagate pushes change through id's operator (arriving on upstream slot
// fromSlot, 0 for a Source) and then recursively through every downstream
// node, in topological order. Called by the router (package router) once
// per Source per incoming CDC record.
func (g *Graph) Propagate(ctx ApplyContext, id NodeId, fromSlot int, change Change) error {
	op, ok := g.Operator(id)
	if !ok {
		return fmt.Errorf("flow: unknown node %d", id)
	}
	out, err := op.Apply(ctx, fromSlot, change)
	if err != nil {
		return fmt.Errorf("flow: node %d apply: %w", id, err)
	}
	if len(out.Diffs) == 0 {
		return nil
	}
	for _, down := range g.Downstream(id) {
		slot := g.upstreamSlot(down, id)
		if err := g.Propagate(ctx, down, slot, out); err != nil {
			return err
		}
	}
	return nil
}
