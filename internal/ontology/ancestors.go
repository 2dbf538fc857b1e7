package ontology

import (
	"fmt"
	"slices"
)

// GetParents returns every ancestor of code reachable in at most levels hops
// over active parent links, sorted and deduplicated.
//
// The result is the closure across all levels, not just the last frontier.
// Codes without recorded parents (the root, unknown codes) yield an empty
// result. The walk is level-synchronous and expands each concept at most once,
// so cyclic data terminates; a cycle back to code includes code itself.
func (o *Ontology) GetParents(code string, levels int) ([]string, error) {
	if levels < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeLevels, levels)
	}
	if levels == 0 {
		return []string{}, nil
	}
	if _, ok := o.index.Parents(code); !ok {
		return []string{}, nil
	}

	found := make(map[string]struct{})
	expanded := map[string]struct{}{code: {}}
	frontier := []string{code}

	for level := 0; level < levels && len(frontier) > 0; level++ {
		var next []string
		for _, c := range frontier {
			parents, _ := o.index.Parents(c)
			for _, p := range parents {
				found[p] = struct{}{}
				if _, seen := expanded[p]; seen {
					continue
				}
				expanded[p] = struct{}{}
				next = append(next, p)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(found))
	for c := range found {
		out = append(out, c)
	}
	slices.Sort(out)
	return out, nil
}

// DirectParents returns the active direct parents of code in activation order.
func (o *Ontology) DirectParents(code string) []string {
	parents, _ := o.index.Parents(code)
	if parents == nil {
		return []string{}
	}
	return parents
}
