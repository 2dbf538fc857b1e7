package ontology

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Benny93/taxon-go/internal/graph"
)

// GetChildren returns the direct children of code, sorted. The code itself is
// not part of the result.
func (o *Ontology) GetChildren(code string) []string {
	children := o.hierarchy.Children(code)
	if children == nil {
		return []string{}
	}
	return children
}

// Subtree returns code and every descendant at most depthLimit edges below it,
// sorted and deduplicated. A depth limit of zero returns just code.
//
// Unknown codes yield an empty result. Nodes are expanded breadth-first and at
// most once, so cycles terminate and every node within the limit is reached
// along its shortest path.
func (o *Ontology) Subtree(code string, depthLimit int) ([]string, error) {
	if depthLimit < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeDepth, depthLimit)
	}
	start, ok := o.hierarchy.Lookup(code)
	if !ok {
		return []string{}, nil
	}

	visited := o.descendants(start, depthLimit)

	out := make([]string, 0, visited.GetCardinality())
	it := visited.Iterator()
	for it.HasNext() {
		out = append(out, o.hierarchy.Code(it.Next()))
	}
	slices.Sort(out)
	return out, nil
}

// descendants walks the hierarchy from start and returns the visited node set,
// start included.
func (o *Ontology) descendants(start graph.NodeID, depthLimit int) *roaring.Bitmap {
	visited := roaring.New()
	visited.Add(start)

	frontier := []graph.NodeID{start}
	for depth := 0; depth < depthLimit && len(frontier) > 0; depth++ {
		var next []graph.NodeID
		for _, id := range frontier {
			for child := range o.hierarchy.ChildNodes(id) {
				if visited.CheckedAdd(child) {
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
	return visited
}
