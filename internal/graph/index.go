package graph

import (
	"cmp"
	"slices"
)

// parentEntry is one active (parent, relationship id) pair of a child.
type parentEntry struct {
	parent string
	relID  string
}

// ActiveIndex maps each child concept to its currently active direct parents.
//
// Entries keep activation order so projections are deterministic. The index is
// written only while building and is read-only afterwards.
type ActiveIndex struct {
	parents map[string][]parentEntry
}

// NewActiveIndex creates an empty index.
func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{parents: make(map[string][]parentEntry)}
}

// Add appends the edge under its child.
func (x *ActiveIndex) Add(key EdgeKey) {
	x.parents[key.Source] = append(x.parents[key.Source], parentEntry{
		parent: key.Destination,
		relID:  key.ID,
	})
}

// Remove drops the first entry matching the edge and reports whether one was found.
// A child left with no parents keeps an empty entry.
func (x *ActiveIndex) Remove(key EdgeKey) bool {
	entries, ok := x.parents[key.Source]
	if !ok {
		return false
	}
	i := slices.Index(entries, parentEntry{parent: key.Destination, relID: key.ID})
	if i < 0 {
		return false
	}
	x.parents[key.Source] = slices.Delete(entries, i, i+1)
	return true
}

// Parents returns the distinct parent codes of child in activation order.
// The second result is false when child never had an active parent.
func (x *ActiveIndex) Parents(child string) ([]string, bool) {
	entries, ok := x.parents[child]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.parent]; dup {
			continue
		}
		seen[e.parent] = struct{}{}
		out = append(out, e.parent)
	}
	return out, true
}

// Has reports whether the edge is present.
func (x *ActiveIndex) Has(key EdgeKey) bool {
	return slices.Contains(x.parents[key.Source], parentEntry{parent: key.Destination, relID: key.ID})
}

// ChildCount returns the number of children with an entry.
func (x *ActiveIndex) ChildCount() int {
	return len(x.parents)
}

// EdgeCount returns the number of active (child, parent, id) entries.
func (x *ActiveIndex) EdgeCount() int {
	n := 0
	for _, entries := range x.parents {
		n += len(entries)
	}
	return n
}

// Edges returns every active edge, sorted by source, destination and id.
func (x *ActiveIndex) Edges() []EdgeKey {
	out := make([]EdgeKey, 0, x.EdgeCount())
	for child, entries := range x.parents {
		for _, e := range entries {
			out = append(out, EdgeKey{ID: e.relID, Source: child, Destination: e.parent})
		}
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []EdgeKey) {
	slices.SortFunc(edges, func(a, b EdgeKey) int {
		return cmp.Or(
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Destination, b.Destination),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
