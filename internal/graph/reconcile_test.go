package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Benny93/taxon-go/internal/parsers"
)

func rel(id string, active bool, source, destination string) parsers.Relationship {
	return parsers.Relationship{
		ID:            id,
		EffectiveTime: "20240901",
		Active:        active,
		SourceID:      source,
		DestinationID: destination,
		TypeID:        IsA,
	}
}

func TestReconciler_Apply(t *testing.T) {
	t.Parallel()

	t.Run("ActivateThenDeactivate", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(NewRelationTypes(IsA), nil)

		key, tr := r.Apply(rel("1", true, "100", "200"))
		assert.Equal(t, Activated, tr)
		assert.Equal(t, EdgeKey{ID: "1", Source: "100", Destination: "200"}, key)
		assert.Equal(t, 1, r.ActiveCount())

		_, tr = r.Apply(rel("1", false, "100", "200"))
		assert.Equal(t, Deactivated, tr)
		assert.Equal(t, 0, r.ActiveCount())
	})

	t.Run("RepeatedActivationIsIdempotent", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(NewRelationTypes(IsA), nil)

		_, tr := r.Apply(rel("1", true, "100", "200"))
		assert.Equal(t, Activated, tr)
		_, tr = r.Apply(rel("1", true, "100", "200"))
		assert.Equal(t, Unchanged, tr)
		_, tr = r.Apply(rel("1", false, "100", "200"))
		assert.Equal(t, Deactivated, tr)
		assert.Equal(t, 0, r.ActiveCount())
	})

	t.Run("ReactivationAfterRemoval", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(NewRelationTypes(IsA), nil)

		r.Apply(rel("1", true, "100", "200"))
		r.Apply(rel("1", false, "100", "200"))
		_, tr := r.Apply(rel("1", true, "100", "200"))
		assert.Equal(t, Activated, tr)
	})

	t.Run("FilteredTypeIgnored", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(NewRelationTypes(IsA), nil)

		rec := rel("9", true, "100", "300")
		rec.TypeID = "363698007"
		_, tr := r.Apply(rec)
		assert.Equal(t, Ignored, tr)
		assert.Equal(t, 0, r.ActiveCount())
	})

	t.Run("UnrestrictedAcceptsAnyType", func(t *testing.T) {
		t.Parallel()
		r := NewReconciler(NewRelationTypes(AllRelationTypes), nil)

		rec := rel("9", true, "100", "300")
		rec.TypeID = "363698007"
		_, tr := r.Apply(rec)
		assert.Equal(t, Activated, tr)
	})
}

func TestReconciler_AbsentInactivationWarns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewReconciler(NewRelationTypes(IsA), zap.New(core))

	rec := rel("7", false, "100", "200")
	rec.Line = 12
	_, tr := r.Apply(rec)
	assert.Equal(t, Absent, tr)

	// Same id with another destination is a different edge.
	r.Apply(rel("8", true, "100", "200"))
	_, tr = r.Apply(rel("8", false, "100", "999"))
	assert.Equal(t, Absent, tr)
	assert.Equal(t, 1, r.ActiveCount())

	entries := logs.FilterMessage("inactivating a relationship that is not active").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "7", fields["relationship_id"])
	assert.Equal(t, "100", fields["source"])
	assert.Equal(t, "200", fields["destination"])
	assert.Equal(t, int64(12), fields["line"])
}
