package layout

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/geometry"
)

const overlapTolerance = 1e-6

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func testGraph(n int) ([]Body, []Spring) {
	bodies := make([]Body, n)
	for i := range bodies {
		name := fmt.Sprintf("Node %d %s", i, strings.Repeat("x", (i%5)*3))
		bodies[i] = Body{ID: fmt.Sprintf("n%d", i), Size: diagram.Size(name)}
	}
	var springs []Spring
	for i := 1; i < n; i++ {
		springs = append(springs, Spring{Source: bodies[i-1].ID, Target: bodies[i].ID})
	}
	springs = append(springs,
		Spring{Source: "n0", Target: "n5"},
		Spring{Source: "n2", Target: "n2"},
		Spring{Source: "n1", Target: "ghost"},
	)
	return bodies, springs
}

func assertCollisionFree(t *testing.T, bodies []Body, pos map[string]geometry.Point, o Options) {
	t.Helper()
	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			dx := math.Abs(pos[a.ID].X - pos[b.ID].X)
			dy := math.Abs(pos[a.ID].Y - pos[b.ID].Y)
			minX := (a.Size.Width+b.Size.Width)/2 + o.PaddingX
			minY := (a.Size.Height+b.Size.Height)/2 + o.PaddingY
			separated := dx >= minX-overlapTolerance || dy >= minY-overlapTolerance
			assert.Truef(t, separated, "%s and %s overlap: dx=%.2f/%.2f dy=%.2f/%.2f", a.ID, b.ID, dx, minX, dy, minY)
		}
	}
}

func assertContained(t *testing.T, bodies []Body, pos map[string]geometry.Point, canvas geometry.Size) {
	t.Helper()
	for _, b := range bodies {
		p := pos[b.ID]
		r := geometry.RectAround(p, b.Size)
		assert.GreaterOrEqualf(t, r.X, -overlapTolerance, "%s left", b.ID)
		assert.GreaterOrEqualf(t, r.Y, -overlapTolerance, "%s top", b.ID)
		assert.LessOrEqualf(t, r.X+r.Width, canvas.Width+overlapTolerance, "%s right", b.ID)
		assert.LessOrEqualf(t, r.Y+r.Height, canvas.Height+overlapTolerance, "%s bottom", b.ID)
	}
}

func TestEngine_Run_CollisionFreeAndContained(t *testing.T) {
	canvas := geometry.Size{Width: 1600, Height: 1200}
	bodies, springs := testGraph(12)

	for _, seed := range []uint64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			e := NewEngine(Options{}, seeded(seed))
			pos, err := e.Run(context.Background(), bodies, springs, canvas)
			require.NoError(t, err)
			require.Len(t, pos, len(bodies))

			assertCollisionFree(t, bodies, pos, e.Options())
			assertContained(t, bodies, pos, canvas)
		})
	}
}

func TestEngine_Run_SameSeedSameLayout(t *testing.T) {
	canvas := geometry.Size{Width: 1200, Height: 900}
	bodies, springs := testGraph(6)

	a, err := NewEngine(Options{}, seeded(3)).Run(context.Background(), bodies, springs, canvas)
	require.NoError(t, err)
	b, err := NewEngine(Options{}, seeded(3)).Run(context.Background(), bodies, springs, canvas)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEngine_Run_SmallCanvasStillContained(t *testing.T) {
	canvas := geometry.Size{Width: 300, Height: 200}
	bodies := []Body{{ID: "wide", Size: geometry.Size{Width: 400, Height: 40}}, {ID: "ok", Size: diagram.Size("ok")}}

	pos, err := NewEngine(Options{}, seeded(1)).Run(context.Background(), bodies, nil, canvas)
	require.NoError(t, err)
	assert.Equal(t, 150.0, pos["wide"].X, "wider than canvas is centred")
	assertContained(t, bodies[1:], pos, canvas)
}

func TestEngine_Run_Empty(t *testing.T) {
	pos, err := NewEngine(Options{}, seeded(1)).Run(context.Background(), nil, nil, geometry.Size{Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestEngine_Run_TooLarge(t *testing.T) {
	bodies, _ := testGraph(6)
	_, err := NewEngine(Options{MaxNodes: 5}, seeded(1)).Run(context.Background(), bodies, nil, geometry.Size{Width: 800, Height: 600})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLayoutTooLarge))
}

func TestEngine_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bodies, springs := testGraph(4)

	_, err := NewEngine(Options{}, seeded(1)).Run(ctx, bodies, springs, geometry.Size{Width: 800, Height: 600})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLayoutCancelled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_CoincidentNodesSeparate(t *testing.T) {
	e := NewEngine(Options{Jitter: 1e-12}, seeded(1))
	bodies := []Body{{ID: "a", Size: diagram.Size("a")}, {ID: "b", Size: diagram.Size("b")}}
	canvas := geometry.Size{Width: 800, Height: 600}

	pos, err := e.Run(context.Background(), bodies, nil, canvas)
	require.NoError(t, err)
	for _, p := range pos {
		assert.True(t, p.IsFinite())
	}
	assertCollisionFree(t, bodies, pos, e.Options())
}

func TestFromDocument_SkipsDanglingAndSelfLoops(t *testing.T) {
	doc, err := diagram.Ingest(diagram.GenerationResult{
		Objects: []diagram.GeneratedObject{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Relationships: []diagram.GeneratedRelationship{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "a"},
		},
	})
	require.NoError(t, err)
	doc.Relationships = append(doc.Relationships, diagram.Relationship{ID: "x", Source: "a", Target: "ghost"})

	bodies, springs := FromDocument(doc)
	assert.Len(t, bodies, 2)
	assert.Equal(t, []Spring{{Source: "a", Target: "b"}}, springs)
}

func TestEngine_Restore(t *testing.T) {
	doc, err := diagram.Ingest(diagram.GenerationResult{
		Objects: []diagram.GeneratedObject{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
	})
	require.NoError(t, err)

	saved := diagram.NewLayout()
	saved.Positions["a"] = geometry.Pt(10, 20)
	saved.Positions["removed"] = geometry.Pt(0, 0)

	canvas := geometry.Size{Width: 800, Height: 600}
	e := NewEngine(Options{}, seeded(9))
	out := e.Restore(saved, doc, canvas)

	assert.Equal(t, geometry.Pt(10, 20), out.Positions["a"])
	_, ok := out.Positions["removed"]
	assert.False(t, ok)
	b := out.Positions["b"]
	assert.InDelta(t, 400, b.X, e.Options().Jitter)
	assert.InDelta(t, 300, b.Y, e.Options().Jitter)
	assert.Len(t, saved.Positions, 2, "saved layout untouched")
}

func TestPlace(t *testing.T) {
	l := diagram.NewLayout()
	l.Positions["a"] = geometry.Pt(1, 2)

	out := Place(l, "b", geometry.Pt(3, 4))
	assert.Equal(t, geometry.Pt(1, 2), out.Positions["a"])
	assert.Equal(t, geometry.Pt(3, 4), out.Positions["b"])
	_, ok := l.Positions["b"]
	assert.False(t, ok)
}

func TestEngine_Layout(t *testing.T) {
	doc, err := diagram.Ingest(diagram.GenerationResult{
		Objects:       []diagram.GeneratedObject{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Relationships: []diagram.GeneratedRelationship{{Source: "a", Target: "b"}},
	})
	require.NoError(t, err)

	l, err := NewEngine(Options{}, seeded(2)).Layout(context.Background(), doc, geometry.Size{Width: 1000, Height: 800})
	require.NoError(t, err)
	assert.Len(t, l.Positions, 2)
	assert.NotNil(t, l.PropertyOffsets)
	assert.NotNil(t, l.RelationshipPropertyOffsets)
}

func TestEngine_Run_DenseGraphOnDefaultCanvas(t *testing.T) {
	canvas := geometry.Size{Width: 1200, Height: 800}
	for _, n := range []int{50, 60, 70} {
		bodies, springs := testGraph(n)
		for seed := uint64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%d nodes seed %d", n, seed), func(t *testing.T) {
				e := NewEngine(Options{}, seeded(seed))
				pos, err := e.Run(context.Background(), bodies, springs, canvas)
				require.NoError(t, err)
				require.Len(t, pos, n)
				assertCollisionFree(t, bodies, pos, e.Options())
				assertContained(t, bodies, pos, canvas)
			})
		}
	}
}

func TestEngine_Run_NarrowCanvasStacksVertically(t *testing.T) {
	canvas := geometry.Size{Width: 150, Height: 600}
	bodies := []Body{
		{ID: "a", Size: geometry.Size{Width: 80, Height: 200}},
		{ID: "b", Size: geometry.Size{Width: 80, Height: 200}},
	}

	e := NewEngine(Options{Jitter: 1e-9}, seeded(4))
	pos, err := e.Run(context.Background(), bodies, nil, canvas)
	require.NoError(t, err)
	assertCollisionFree(t, bodies, pos, e.Options())
	assertContained(t, bodies, pos, canvas)
}

func TestResolveCollisions_PinnedPairMovesOnOtherAxis(t *testing.T) {
	e := NewEngine(Options{}, seeded(1))
	canvas := geometry.Size{Width: 150, Height: 600}
	s := state{
		pos:  []geometry.Point{geometry.Pt(70, 300), geometry.Pt(80, 300)},
		half: []geometry.Size{{Width: 40, Height: 100}, {Width: 40, Height: 100}},
	}

	require.True(t, e.resolveCollisions(&s, canvas))
	assert.Equal(t, 70.0, s.pos[0].X)
	assert.Equal(t, 80.0, s.pos[1].X)
	assert.Less(t, s.pos[0].Y, 300.0)
	assert.Greater(t, s.pos[1].Y, 300.0)
}

func TestPack(t *testing.T) {
	canvas := geometry.Size{Width: 1200, Height: 800}
	bodies, _ := testGraph(40)
	s := state{pos: make([]geometry.Point, len(bodies)), half: make([]geometry.Size, len(bodies))}
	for i, b := range bodies {
		s.pos[i] = geometry.Pt(600, 400)
		s.half[i] = geometry.Size{Width: b.Size.Width / 2, Height: b.Size.Height / 2}
	}

	e := NewEngine(Options{}, seeded(1))
	e.pack(&s, canvas)

	pos := make(map[string]geometry.Point, len(bodies))
	for i, b := range bodies {
		pos[b.ID] = s.pos[i]
	}
	assertCollisionFree(t, bodies, pos, e.Options())
	assertContained(t, bodies, pos, canvas)
	assert.False(t, e.overlapping(&s))
}

func TestEngine_Fit(t *testing.T) {
	e := NewEngine(Options{}, seeded(1))
	canvas := geometry.Size{Width: 1200, Height: 800}

	few, _ := testGraph(5)
	assert.Equal(t, canvas, e.Fit(few, canvas))

	many, _ := testGraph(200)
	grown := e.Fit(many, canvas)
	assert.Greater(t, grown.Width, canvas.Width)
	assert.InDelta(t, canvas.Width/canvas.Height, grown.Width/grown.Height, 1e-9)

	var area float64
	for _, b := range many {
		area += (b.Size.Width + e.Options().PaddingX) * (b.Size.Height + e.Options().PaddingY)
	}
	assert.InDelta(t, e.Options().MaxDensity, area/(grown.Width*grown.Height), 1e-9)
}
