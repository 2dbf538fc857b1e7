package graph

import (
	"errors"
	"iter"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/taxon-go/internal/parsers"
)

func records(recs ...parsers.Relationship) iter.Seq2[parsers.Relationship, error] {
	return func(yield func(parsers.Relationship, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func buildOpts() BuildOptions {
	return BuildOptions{Types: NewRelationTypes(IsA), Root: RootConcept}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("SingleIsA", func(t *testing.T) {
		t.Parallel()
		index, h, stats, err := Build(records(rel("1", true, "100", "200")), buildOpts())
		require.NoError(t, err)

		parents, ok := index.Parents("100")
		assert.True(t, ok)
		assert.Equal(t, []string{"200"}, parents)
		assert.Equal(t, []string{"100"}, h.Children("200"))
		assert.Equal(t, BuildStats{Records: 1, Activated: 1}, stats)
	})

	t.Run("InactivationRemovesFromBothViews", func(t *testing.T) {
		t.Parallel()
		index, h, stats, err := Build(records(
			rel("1", true, "100", "200"),
			rel("1", false, "100", "200"),
		), buildOpts())
		require.NoError(t, err)

		parents, ok := index.Parents("100")
		assert.True(t, ok)
		assert.Empty(t, parents)
		assert.Empty(t, h.Children("200"))
		assert.Equal(t, 1, stats.Deactivated)
	})

	t.Run("OtherIDsForChildRemain", func(t *testing.T) {
		t.Parallel()
		index, h, _, err := Build(records(
			rel("1", true, "A", "B"),
			rel("2", true, "A", "C"),
			rel("3", true, "A", "B"),
			rel("1", false, "A", "B"),
		), buildOpts())
		require.NoError(t, err)

		parents, _ := index.Parents("A")
		assert.Equal(t, []string{"C", "B"}, parents)
		assert.False(t, index.Has(EdgeKey{ID: "1", Source: "A", Destination: "B"}))
		assert.True(t, index.Has(EdgeKey{ID: "3", Source: "A", Destination: "B"}))
		assert.True(t, h.HasEdge("B", "A"))
		assert.True(t, h.HasEdge("C", "A"))
	})

	t.Run("AbsentInactivationDoesNotAbort", func(t *testing.T) {
		t.Parallel()
		index, h, stats, err := Build(records(
			rel("5", false, "100", "200"),
			rel("1", true, "100", "200"),
		), buildOpts())
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Absent)
		parents, _ := index.Parents("100")
		assert.Equal(t, []string{"200"}, parents)
		assert.True(t, h.HasEdge("200", "100"))
	})

	t.Run("FilteredTypesNeverCreateNodes", func(t *testing.T) {
		t.Parallel()
		attr := rel("9", true, "100", "300")
		attr.TypeID = "363698007"

		index, h, stats, err := Build(records(attr), buildOpts())
		require.NoError(t, err)

		_, ok := index.Parents("100")
		assert.False(t, ok)
		assert.False(t, h.HasNode("300"))
		assert.Equal(t, 1, h.NodeCount())
		assert.Equal(t, 1, stats.Ignored)
	})

	t.Run("SourceErrorAborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		seq := func(yield func(parsers.Relationship, error) bool) {
			if !yield(rel("1", true, "100", "200"), nil) {
				return
			}
			yield(parsers.Relationship{}, boom)
		}

		index, h, stats, err := Build(seq, buildOpts())
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, index)
		assert.Nil(t, h)
		assert.Equal(t, 1, stats.Records)
	})
}

func TestResolveActiveAndBuildHierarchy(t *testing.T) {
	t.Parallel()

	recs := []parsers.Relationship{
		rel("1", true, "100", "200"),
		rel("2", true, "200", RootConcept),
		rel("3", true, "300", "200"),
		rel("3", false, "300", "200"),
	}

	index, err := ResolveActive(records(recs...), NewRelationTypes(IsA), nil)
	require.NoError(t, err)
	h, err := BuildHierarchy(records(recs...), NewRelationTypes(IsA), RootConcept, nil)
	require.NoError(t, err)

	assert.Equal(t, index.Edges(), h.Edges())
	assert.Equal(t, []string{"200"}, h.Children(RootConcept))
	assert.Equal(t, 2, index.EdgeCount())
	assert.Equal(t, 3, index.ChildCount())
}

// TestBuild_ViewsAgree folds a random change history and checks that the
// index and the graph end up holding the same active edge set.
func TestBuild_ViewsAgree(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	var recs []parsers.Relationship
	for i := 0; i < 2000; i++ {
		id := strconv.Itoa(rng.IntN(150))
		src := strconv.Itoa(rng.IntN(40))
		dst := strconv.Itoa(rng.IntN(40))
		recs = append(recs, rel(id, rng.IntN(3) > 0, src, dst))
	}

	index, h, stats, err := Build(records(recs...), buildOpts())
	require.NoError(t, err)

	assert.Equal(t, index.Edges(), h.Edges())
	assert.Equal(t, index.EdgeCount(), h.EdgeCount())
	assert.Equal(t, stats.Activated-stats.Deactivated, h.EdgeCount())
}
