package ontology

import "sync/atomic"

// Holder publishes the current Ontology to concurrent readers. Replacing the
// held value swaps in a complete, separately built Ontology; the previous
// value is left untouched for readers still using it.
type Holder struct {
	current atomic.Pointer[Ontology]
}

// NewHolder creates a Holder serving o.
func NewHolder(o *Ontology) *Holder {
	h := &Holder{}
	h.current.Store(o)
	return h
}

// Load returns the Ontology currently served.
func (h *Holder) Load() *Ontology {
	return h.current.Load()
}

// Swap replaces the served Ontology and returns the previous one.
func (h *Holder) Swap(o *Ontology) *Ontology {
	return h.current.Swap(o)
}
