package graph

import (
	"iter"

	"go.uber.org/zap"

	"github.com/Benny93/taxon-go/internal/parsers"
)

// BuildOptions configures a reconciliation pass.
type BuildOptions struct {
	// Types selects the relationship types folded into the hierarchy.
	Types RelationTypes

	// Root is the concept code that is always a node of the Hierarchy.
	Root string

	// Logger receives warnings for inactivations of absent relationships.
	Logger *zap.Logger
}

// BuildStats counts record transitions of a pass.
type BuildStats struct {
	Records     int
	Ignored     int
	Activated   int
	Unchanged   int
	Deactivated int
	Absent      int
}

// Build folds records once and fills both the ActiveIndex and the Hierarchy
// from the same Reconciler, so the two views always hold the same edge set.
// The first error yielded by records aborts the pass.
func Build(records iter.Seq2[parsers.Relationship, error], opts BuildOptions) (*ActiveIndex, *Hierarchy, BuildStats, error) {
	index := NewActiveIndex()
	hierarchy := NewHierarchy(opts.Root)

	stats, err := fold(records, opts, func(key EdgeKey, t Transition) {
		switch t {
		case Activated:
			index.Add(key)
			hierarchy.AddEdge(key)
		case Deactivated:
			index.Remove(key)
			hierarchy.RemoveEdge(key)
		}
	})
	if err != nil {
		return nil, nil, stats, err
	}
	return index, hierarchy, stats, nil
}

// ResolveActive builds only the child→parents index.
func ResolveActive(records iter.Seq2[parsers.Relationship, error], types RelationTypes, logger *zap.Logger) (*ActiveIndex, error) {
	index := NewActiveIndex()
	_, err := fold(records, BuildOptions{Types: types, Logger: logger}, func(key EdgeKey, t Transition) {
		switch t {
		case Activated:
			index.Add(key)
		case Deactivated:
			index.Remove(key)
		}
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

// BuildHierarchy builds only the parent→child multigraph rooted at root.
func BuildHierarchy(records iter.Seq2[parsers.Relationship, error], types RelationTypes, root string, logger *zap.Logger) (*Hierarchy, error) {
	hierarchy := NewHierarchy(root)
	_, err := fold(records, BuildOptions{Types: types, Root: root, Logger: logger}, func(key EdgeKey, t Transition) {
		switch t {
		case Activated:
			hierarchy.AddEdge(key)
		case Deactivated:
			hierarchy.RemoveEdge(key)
		}
	})
	if err != nil {
		return nil, err
	}
	return hierarchy, nil
}

func fold(records iter.Seq2[parsers.Relationship, error], opts BuildOptions, apply func(EdgeKey, Transition)) (BuildStats, error) {
	rec := NewReconciler(opts.Types, opts.Logger)
	var stats BuildStats

	for r, err := range records {
		if err != nil {
			return stats, err
		}
		stats.Records++

		key, t := rec.Apply(r)
		switch t {
		case Ignored:
			stats.Ignored++
		case Activated:
			stats.Activated++
		case Unchanged:
			stats.Unchanged++
		case Deactivated:
			stats.Deactivated++
		case Absent:
			stats.Absent++
		}
		apply(key, t)
	}

	return stats, nil
}
