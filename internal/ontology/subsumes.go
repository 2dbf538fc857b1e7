package ontology

// Subsumption is the outcome of comparing two concepts in the hierarchy,
// named after the FHIR $subsumes operation.
type Subsumption string

const (
	// Equivalent means both codes are the same concept.
	Equivalent Subsumption = "equivalent"
	// Subsumes means a is an ancestor of b.
	Subsumes Subsumption = "subsumes"
	// SubsumedBy means a is a descendant of b.
	SubsumedBy Subsumption = "subsumed-by"
	// NotSubsumed means neither is an ancestor of the other.
	NotSubsumed Subsumption = "not-subsumed"
)

// Subsumes compares a and b over the full active ancestor closure.
func (o *Ontology) Subsumes(a, b string) Subsumption {
	if a == b {
		return Equivalent
	}
	if o.isAncestor(a, b) {
		return Subsumes
	}
	if o.isAncestor(b, a) {
		return SubsumedBy
	}
	return NotSubsumed
}

// isAncestor reports whether ancestor is reachable from code over parent links.
func (o *Ontology) isAncestor(ancestor, code string) bool {
	seen := map[string]struct{}{code: {}}
	stack := []string{code}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parents, _ := o.index.Parents(c)
		for _, p := range parents {
			if p == ancestor {
				return true
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			stack = append(stack, p)
		}
	}
	return false
}
