// Package ontology answers hierarchy queries over a reconciled terminology.
//
// An Ontology is built once and never modified afterwards, so a single value
// can serve queries from any number of goroutines without locking.
package ontology

import (
	"errors"
	"iter"

	"github.com/Benny93/taxon-go/internal/graph"
	"github.com/Benny93/taxon-go/internal/parsers"
)

var (
	// ErrNegativeLevels is returned when an ancestor query asks for fewer than zero levels.
	ErrNegativeLevels = errors.New("levels must be >= 0")

	// ErrNegativeDepth is returned when a subtree query asks for a depth below zero.
	ErrNegativeDepth = errors.New("depth limit must be >= 0")
)

// Ontology pairs the active relation index with the hierarchy graph.
type Ontology struct {
	index     *graph.ActiveIndex
	hierarchy *graph.Hierarchy
	types     graph.RelationTypes
}

// New wraps already built views. Both must come from the same reconciliation
// pass; Build guarantees this.
func New(index *graph.ActiveIndex, hierarchy *graph.Hierarchy, types graph.RelationTypes) *Ontology {
	return &Ontology{index: index, hierarchy: hierarchy, types: types}
}

// Build folds records in a single pass and returns the resulting Ontology.
func Build(records iter.Seq2[parsers.Relationship, error], opts graph.BuildOptions) (*Ontology, graph.BuildStats, error) {
	index, hierarchy, stats, err := graph.Build(records, opts)
	if err != nil {
		return nil, stats, err
	}
	return New(index, hierarchy, opts.Types), stats, nil
}

// Root returns the configured root concept.
func (o *Ontology) Root() string {
	return o.hierarchy.Root()
}

// Index exposes the child→parents view.
func (o *Ontology) Index() *graph.ActiveIndex {
	return o.index
}

// Hierarchy exposes the parent→child view.
func (o *Ontology) Hierarchy() *graph.Hierarchy {
	return o.hierarchy
}

// Stats describes the size of an Ontology.
type Stats struct {
	Root            string   `json:"root" yaml:"root"`
	RelationTypes   []string `json:"relation_types" yaml:"relation_types"`
	Nodes           int      `json:"nodes" yaml:"nodes"`
	Edges           int      `json:"edges" yaml:"edges"`
	IndexedConcepts int      `json:"indexed_concepts" yaml:"indexed_concepts"`
}

// Stats returns node, edge and index counts.
func (o *Ontology) Stats() Stats {
	return Stats{
		Root:            o.Root(),
		RelationTypes:   o.types.IDs(),
		Nodes:           o.hierarchy.NodeCount(),
		Edges:           o.hierarchy.EdgeCount(),
		IndexedConcepts: o.index.ChildCount(),
	}
}
