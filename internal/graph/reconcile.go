package graph

import (
	"go.uber.org/zap"

	"github.com/Benny93/taxon-go/internal/parsers"
)

// Transition is the effect of one record on the reconciled state.
type Transition int

const (
	// Ignored means the record's type is filtered out.
	Ignored Transition = iota
	// Activated means the edge became active.
	Activated
	// Unchanged means an active record repeated an already active edge.
	Unchanged
	// Deactivated means an active edge was switched off.
	Deactivated
	// Absent means an inactive record named an edge that was not active.
	Absent
)

func (t Transition) String() string {
	switch t {
	case Ignored:
		return "ignored"
	case Activated:
		return "activated"
	case Unchanged:
		return "unchanged"
	case Deactivated:
		return "deactivated"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Reconciler is the id-keyed activation state machine shared by both views.
// Records are applied strictly in input order; effective times are never
// compared.
type Reconciler struct {
	types  RelationTypes
	active map[EdgeKey]struct{}
	logger *zap.Logger
}

// NewReconciler creates a Reconciler for the given type filter.
func NewReconciler(types RelationTypes, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		types:  types,
		active: make(map[EdgeKey]struct{}),
		logger: logger,
	}
}

// Apply folds one record into the state and reports the transition.
func (r *Reconciler) Apply(rec parsers.Relationship) (EdgeKey, Transition) {
	if !r.types.Contains(rec.TypeID) {
		return EdgeKey{}, Ignored
	}

	key := EdgeKey{ID: rec.ID, Source: rec.SourceID, Destination: rec.DestinationID}
	_, isActive := r.active[key]

	if rec.Active {
		if isActive {
			return key, Unchanged
		}
		r.active[key] = struct{}{}
		return key, Activated
	}

	if !isActive {
		r.logger.Warn("inactivating a relationship that is not active",
			zap.String("relationship_id", rec.ID),
			zap.String("source", rec.SourceID),
			zap.String("destination", rec.DestinationID),
			zap.Int("line", rec.Line),
		)
		return key, Absent
	}
	delete(r.active, key)
	return key, Deactivated
}

// ActiveCount returns the number of currently active edges.
func (r *Reconciler) ActiveCount() int {
	return len(r.active)
}
