package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
)

const tolerance = 1e-9

func twoNodes(t *testing.T, rels ...diagram.GeneratedRelationship) (diagram.Document, diagram.Layout) {
	t.Helper()
	doc, err := diagram.Ingest(diagram.GenerationResult{
		Objects: []diagram.GeneratedObject{
			{ID: "A", Name: "Abcd"},
			{ID: "B", Name: "Abcdefghij"},
		},
		Relationships: rels,
	})
	require.NoError(t, err)
	l := diagram.NewLayout()
	l.Positions["A"] = geometry.Pt(100, 200)
	l.Positions["B"] = geometry.Pt(500, 200)
	return doc, l
}

// perpendicular returns the signed distance of p from the horizontal line y=200.
func perpendicular(p geometry.Point) float64 {
	return p.Y - 200
}

func TestRoute_SingleEdgeIsStraight(t *testing.T) {
	doc, l := twoNodes(t, diagram.GeneratedRelationship{Source: "A", Target: "B", Label: "x"})

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 1)
	p := paths[0]

	assert.Equal(t, Straight, p.Kind)
	assert.Equal(t, geometry.Pt(140, 200), p.Start, "leaves A through its right side")
	assert.Equal(t, geometry.Pt(450, 200), p.End, "enters B through its left side")
	assert.Equal(t, geometry.Pt(300, 200), p.Label)
}

func TestRoute_TwoParallelEdges(t *testing.T) {
	doc, l := twoNodes(t,
		diagram.GeneratedRelationship{Source: "A", Target: "B", Label: "one"},
		diagram.GeneratedRelationship{Source: "A", Target: "B", Label: "two"},
	)
	a, _ := doc.Node("A")
	b, _ := doc.Node("B")
	assert.Equal(t, geometry.Size{Width: 80, Height: 40}, a.Size())
	assert.Equal(t, geometry.Size{Width: 100, Height: 40}, b.Size())

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 2)

	for _, p := range paths {
		assert.Equal(t, Quadratic, p.Kind)
	}
	assert.InDelta(t, -35, perpendicular(paths[0].Control), tolerance)
	assert.InDelta(t, 35, perpendicular(paths[1].Control), tolerance)
	assert.NotEqual(t, paths[0].Label, paths[1].Label)
	assert.InDelta(t, 0, perpendicular(paths[0].Label)+perpendicular(paths[1].Label), tolerance, "symmetric")
}

func TestRoute_ThreeEdgesDistinctLabels(t *testing.T) {
	doc, l := twoNodes(t,
		diagram.GeneratedRelationship{Source: "A", Target: "B"},
		diagram.GeneratedRelationship{Source: "B", Target: "A"},
		diagram.GeneratedRelationship{Source: "A", Target: "B"},
	)

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 3)

	offsets := []float64{-45, 25, 45}
	for i, p := range paths {
		assert.InDeltaf(t, offsets[i], perpendicular(p.Control), tolerance, "edge %d", i)
	}
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			assert.NotEqual(t, paths[i].Label, paths[j].Label)
		}
	}
}

func TestRoute_OppositeDirectionsDoNotCollide(t *testing.T) {
	doc, l := twoNodes(t,
		diagram.GeneratedRelationship{Source: "A", Target: "B"},
		diagram.GeneratedRelationship{Source: "B", Target: "A"},
	)

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 2)
	assert.Less(t, perpendicular(paths[0].Control), 0.0)
	assert.Greater(t, perpendicular(paths[1].Control), 0.0)
}

func TestRoute_ExplicitControlPoint(t *testing.T) {
	doc, l := twoNodes(t,
		diagram.GeneratedRelationship{Source: "A", Target: "B"},
		diagram.GeneratedRelationship{Source: "A", Target: "B"},
	)
	relID := doc.Relationships[0].ID
	doc, _ = doc.UpdateRelationship(relID, func(r diagram.Relationship) diagram.Relationship {
		r.ControlOffset = &geometry.Point{X: 0, Y: 100}
		return r
	})

	p, ok := NewRouter(Options{}).RouteOne(doc, l, relID)
	require.True(t, ok)

	assert.Equal(t, geometry.Pt(300, 300), p.Control)
	assert.Equal(t, geometry.Pt(300, 200), p.Midpoint)
	want := geometry.Pt(
		0.25*p.Start.X+0.5*p.Control.X+0.25*p.End.X,
		0.25*p.Start.Y+0.5*p.Control.Y+0.25*p.End.Y,
	)
	assert.InDelta(t, want.X, p.Label.X, tolerance)
	assert.InDelta(t, want.Y, p.Label.Y, tolerance)
	assert.Greater(t, p.Start.Y, 200.0, "aims towards the control point")
}

func TestRoute_SkipsMissingEndpoints(t *testing.T) {
	doc, l := twoNodes(t, diagram.GeneratedRelationship{Source: "A", Target: "B"})
	doc.Relationships = append(doc.Relationships, diagram.Relationship{ID: "dangling", Source: "A", Target: "ghost"})

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 1)

	delete(l.Positions, "B")
	assert.Empty(t, NewRouter(Options{}).Route(doc, l))
}

func TestRoute_SelfLoops(t *testing.T) {
	doc, l := twoNodes(t,
		diagram.GeneratedRelationship{Source: "A", Target: "A"},
		diagram.GeneratedRelationship{Source: "A", Target: "A"},
	)

	paths := NewRouter(Options{}).Route(doc, l)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, Loop, p.Kind)
		assert.Less(t, p.Label.Y, 180.0, "label sits above the node")
	}
	assert.Less(t, paths[1].Label.Y, paths[0].Label.Y, "later loops stack higher")
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestDefaultNodeOffset_FirstPointsUp(t *testing.T) {
	size := geometry.Size{Width: 80, Height: 40}
	off := DefaultNodeOffset(0, 4, "abcd", size)
	assert.InDelta(t, 0, off.X, tolerance)
	assert.InDelta(t, -(20 + 20 + 2.5*4), off.Y, tolerance)

	right := DefaultNodeOffset(1, 4, "ab", size)
	assert.InDelta(t, 40+20+5, right.X, tolerance)
	assert.InDelta(t, 0, right.Y, 1e-6)
}

func TestDefaultRelationshipOffset(t *testing.T) {
	off := DefaultRelationshipOffset(2, 4, "abcd")
	assert.InDelta(t, 0, off.X, 1e-6)
	assert.InDelta(t, 30, off.Y, tolerance)
	assert.InDelta(t, 30, math.Hypot(off.X, off.Y), tolerance)
}

func TestReconcile_OffsetStability(t *testing.T) {
	doc, l := twoNodes(t, diagram.GeneratedRelationship{Source: "A", Target: "B"})
	doc, keep, _ := doc.AddProperty("A", "kept")
	doc, drop, _ := doc.AddProperty("A", "dropped")

	l = Reconcile(doc, l)
	l.PropertyOffsets[keep.ID] = geometry.Pt(-77, 13)

	doc, added, _ := doc.AddProperty("A", "added")
	doc, _ = doc.DeleteProperty(drop.ID)
	out := Reconcile(doc, l)

	assert.Equal(t, geometry.Pt(-77, 13), out.PropertyOffsets[keep.ID])
	_, ok := out.PropertyOffsets[drop.ID]
	assert.False(t, ok)
	assert.Equal(t, DefaultNodeOffset(1, 2, "added", geometry.Size{Width: 80, Height: 40}), out.PropertyOffsets[added.ID])
	assert.Len(t, out.PropertyOffsets, 2)
}

func TestReconcile_RelationshipProperties(t *testing.T) {
	doc, l := twoNodes(t, diagram.GeneratedRelationship{Source: "A", Target: "B"})
	relID := doc.Relationships[0].ID
	doc, p, _ := doc.AddProperty(relID, "weight")

	out := Reconcile(doc, l)
	assert.Equal(t, DefaultRelationshipOffset(0, 1, "weight"), out.RelationshipPropertyOffsets[p.ID])
	assert.Empty(t, out.PropertyOffsets)
}

func TestAnchors(t *testing.T) {
	doc, l := twoNodes(t, diagram.GeneratedRelationship{Source: "A", Target: "B"})
	relID := doc.Relationships[0].ID
	doc, np, _ := doc.AddProperty("A", "colour")
	doc, rp, _ := doc.AddProperty(relID, "weight")
	l.PropertyOffsets[np.ID] = geometry.Pt(0, -50)

	paths := NewRouter(Options{}).Route(doc, l)
	anchors := Anchors(doc, l, paths)
	require.Len(t, anchors, 2)

	assert.Equal(t, geometry.Pt(100, 150), anchors[0].Point)
	assert.True(t, anchors[0].Saved)
	assert.Equal(t, diagram.OwnerNode, anchors[0].OwnerKind)

	assert.Equal(t, rp.ID, anchors[1].PropertyID)
	assert.Equal(t, paths[0].Label, anchors[1].Origin)
	assert.False(t, anchors[1].Saved)
	assert.Equal(t, paths[0].Label.Add(DefaultRelationshipOffset(0, 1, "weight")), anchors[1].Point)
}
