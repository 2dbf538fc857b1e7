package graph

import (
	"iter"
	"slices"
)

// NodeID is the dense id a Hierarchy assigns to each concept code.
type NodeID = uint32

// edge is one parent→child edge labeled by the relationship that made it.
type edge struct {
	parent NodeID
	child  NodeID
	relID  string
}

// pair is an unlabeled parent→child link.
type pair struct {
	parent NodeID
	child  NodeID
}

// Hierarchy is a directed multigraph whose edges point from parent to child.
//
// Concept codes are interned to dense NodeIDs in first-seen order so traversals
// can track visited nodes in bitmaps. Parallel edges between the same pair are
// kept apart by relationship id and removed independently. Nodes are never
// removed, so a concept whose last edge was inactivated is still known.
//
// The root node exists from construction even if no edge touches it.
type Hierarchy struct {
	root  NodeID
	ids   map[string]NodeID
	codes []string

	edges map[edge]struct{}

	// multiplicity counts the labeled edges behind each pair.
	multiplicity map[pair]int

	// children is indexed by NodeID and lists each distinct child once.
	children [][]NodeID
}

// NewHierarchy creates a graph containing only the root node.
func NewHierarchy(root string) *Hierarchy {
	h := &Hierarchy{
		ids:          make(map[string]NodeID),
		edges:        make(map[edge]struct{}),
		multiplicity: make(map[pair]int),
	}
	h.root = h.intern(root)
	return h
}

func (h *Hierarchy) intern(code string) NodeID {
	if id, ok := h.ids[code]; ok {
		return id
	}
	id := NodeID(len(h.codes))
	h.ids[code] = id
	h.codes = append(h.codes, code)
	h.children = append(h.children, nil)
	return id
}

// AddEdge inserts the parent→child edge for key (Destination→Source).
// Adding an edge that already exists with the same id is a no-op returning false.
func (h *Hierarchy) AddEdge(key EdgeKey) bool {
	parent := h.intern(key.Destination)
	child := h.intern(key.Source)

	e := edge{parent: parent, child: child, relID: key.ID}
	if _, ok := h.edges[e]; ok {
		return false
	}
	h.edges[e] = struct{}{}

	p := pair{parent: parent, child: child}
	h.multiplicity[p]++
	if h.multiplicity[p] == 1 {
		h.children[parent] = append(h.children[parent], child)
	}
	return true
}

// RemoveEdge deletes the parent→child edge with exactly this relationship id.
// It reports false when no such edge exists.
func (h *Hierarchy) RemoveEdge(key EdgeKey) bool {
	parent, ok := h.ids[key.Destination]
	if !ok {
		return false
	}
	child, ok := h.ids[key.Source]
	if !ok {
		return false
	}

	e := edge{parent: parent, child: child, relID: key.ID}
	if _, ok := h.edges[e]; !ok {
		return false
	}
	delete(h.edges, e)

	p := pair{parent: parent, child: child}
	h.multiplicity[p]--
	if h.multiplicity[p] == 0 {
		delete(h.multiplicity, p)
		if i := slices.Index(h.children[parent], child); i >= 0 {
			h.children[parent] = slices.Delete(h.children[parent], i, i+1)
		}
	}
	return true
}

// Root returns the configured root code.
func (h *Hierarchy) Root() string {
	return h.codes[h.root]
}

// Lookup returns the NodeID of code.
func (h *Hierarchy) Lookup(code string) (NodeID, bool) {
	id, ok := h.ids[code]
	return id, ok
}

// Code returns the concept code of a NodeID.
func (h *Hierarchy) Code(id NodeID) string {
	return h.codes[id]
}

// HasNode reports whether code is a node of the graph.
func (h *Hierarchy) HasNode(code string) bool {
	_, ok := h.ids[code]
	return ok
}

// HasEdge reports whether any edge leads from parent to child.
func (h *Hierarchy) HasEdge(parent, child string) bool {
	return h.EdgeMultiplicity(parent, child) > 0
}

// EdgeMultiplicity counts the parallel edges from parent to child.
func (h *Hierarchy) EdgeMultiplicity(parent, child string) int {
	p, ok := h.ids[parent]
	if !ok {
		return 0
	}
	c, ok := h.ids[child]
	if !ok {
		return 0
	}
	return h.multiplicity[pair{parent: p, child: c}]
}

// ChildNodes yields the direct children of id, once per child even when
// several relationships connect them.
func (h *Hierarchy) ChildNodes(id NodeID) iter.Seq[NodeID] {
	return slices.Values(h.children[id])
}

// Children returns the distinct direct children of code, sorted.
func (h *Hierarchy) Children(code string) []string {
	id, ok := h.ids[code]
	if !ok || len(h.children[id]) == 0 {
		return nil
	}
	out := make([]string, 0, len(h.children[id]))
	for _, c := range h.children[id] {
		out = append(out, h.codes[c])
	}
	slices.Sort(out)
	return out
}

// NodeCount returns the number of nodes, root included.
func (h *Hierarchy) NodeCount() int {
	return len(h.codes)
}

// EdgeCount returns the number of edges, counting parallel edges separately.
func (h *Hierarchy) EdgeCount() int {
	return len(h.edges)
}

// Edges returns every edge as an EdgeKey, sorted like ActiveIndex.Edges.
func (h *Hierarchy) Edges() []EdgeKey {
	out := make([]EdgeKey, 0, len(h.edges))
	for e := range h.edges {
		out = append(out, EdgeKey{
			ID:          e.relID,
			Source:      h.codes[e.child],
			Destination: h.codes[e.parent],
		})
	}
	sortEdges(out)
	return out
}
