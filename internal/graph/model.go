// Package graph holds the reconciled relationship state of a terminology.
//
// A snapshot is folded once through a Reconciler, which tracks which
// relationship versions are currently active. Every transition it reports is
// mirrored into two views of the same edge set: the ActiveIndex (child to
// parents, for ancestor lookups) and the Hierarchy (parent to children
// multigraph, for subtree traversal).
package graph

import (
	"slices"
	"strings"
)

// IsA is the SNOMED CT "is a" relationship type.
const IsA = "116680003"

// RootConcept is the SNOMED CT root concept.
const RootConcept = "138875005"

// AllRelationTypes is the configuration value that disables type filtering.
const AllRelationTypes = "all"

// EdgeKey identifies one tracked relationship version.
// Source is the child concept, Destination the parent.
type EdgeKey struct {
	ID          string
	Source      string
	Destination string
}

// RelationTypes filters which relationship type ids take part in the hierarchy.
// The zero value accepts every type.
type RelationTypes struct {
	types map[string]struct{}
}

// NewRelationTypes builds a filter from type ids. An empty list, or a list
// containing "all", accepts every type.
func NewRelationTypes(ids ...string) RelationTypes {
	rt := RelationTypes{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.EqualFold(id, AllRelationTypes) {
			return RelationTypes{}
		}
		if rt.types == nil {
			rt.types = make(map[string]struct{})
		}
		rt.types[id] = struct{}{}
	}
	return rt
}

// Unrestricted reports whether every relationship type is accepted.
// Non-hierarchical attribute relationships are then folded in as if they were
// "is a" edges.
func (rt RelationTypes) Unrestricted() bool {
	return len(rt.types) == 0
}

// Contains reports whether typeID passes the filter.
func (rt RelationTypes) Contains(typeID string) bool {
	if rt.Unrestricted() {
		return true
	}
	_, ok := rt.types[typeID]
	return ok
}

// IDs returns the accepted type ids in sorted order, or nil when unrestricted.
func (rt RelationTypes) IDs() []string {
	if rt.Unrestricted() {
		return nil
	}
	ids := make([]string, 0, len(rt.types))
	for id := range rt.types {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
