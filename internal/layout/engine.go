// Package layout computes initial node positions with a force-directed
// simulation: pairwise inverse-square repulsion, springs along edges, a weak
// pull towards the canvas centre, damped integration, then positional
// collision resolution and clamping to the canvas.
package layout

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/geometry"
)

// cancelCheckEvery is how many iterations run between context checks.
const cancelCheckEvery = 25

// collisionSlack separates resolved pairs by a hair so floating point error
// cannot leave them overlapping.
const collisionSlack = 0.01

// Body is a node as the simulation sees it.
type Body struct {
	ID   string
	Size geometry.Size
}

// Spring is an edge pulling two bodies towards the ideal separation.
type Spring struct {
	Source string
	Target string
}

// Engine runs simulations. It is safe for concurrent use.
type Engine struct {
	opts Options

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an engine. A nil rng seeds one from the clock, which
// makes layouts differ between runs.
func NewEngine(opts Options, rng *rand.Rand) *Engine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Engine{opts: opts.withDefaults(), rng: rng}
}

// Options returns the effective parameters.
func (e *Engine) Options() Options {
	return e.opts
}

// FromDocument extracts bodies and springs from a document. Relationships
// whose endpoints are missing, and self-loops, produce no spring.
func FromDocument(doc diagram.Document) ([]Body, []Spring) {
	bodies := make([]Body, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		bodies = append(bodies, Body{ID: n.ID, Size: n.Size()})
	}
	springs := make([]Spring, 0, len(doc.Relationships))
	for _, r := range doc.Relationships {
		if r.SelfLoop() {
			continue
		}
		if _, ok := doc.Node(r.Source); !ok {
			continue
		}
		if _, ok := doc.Node(r.Target); !ok {
			continue
		}
		springs = append(springs, Spring{Source: r.Source, Target: r.Target})
	}
	return bodies, springs
}

type state struct {
	pos   []geometry.Point
	vel   []geometry.Point
	force []geometry.Point
	half  []geometry.Size
}

// Run simulates the full iteration count and returns node centres keyed by id.
// There is no convergence test; the result depends on the engine's random
// source through the initial scatter. When the settle passes cannot separate
// every pair, the nodes are packed into rows instead; rows that do not fit
// the canvas height extend past its bottom edge.
func (e *Engine) Run(ctx context.Context, bodies []Body, springs []Spring, canvas geometry.Size) (map[string]geometry.Point, error) {
	o := e.opts
	if len(bodies) > o.MaxNodes {
		return nil, apperrors.Validation(apperrors.CodeLayoutTooLarge, "too many nodes to lay out").
			WithDetailsf("%d nodes, limit %d", len(bodies), o.MaxNodes).
			Build()
	}

	center := geometry.Pt(canvas.Width/2, canvas.Height/2)
	index := make(map[string]int, len(bodies))
	s := state{
		pos:   make([]geometry.Point, len(bodies)),
		vel:   make([]geometry.Point, len(bodies)),
		force: make([]geometry.Point, len(bodies)),
		half:  make([]geometry.Size, len(bodies)),
	}

	e.mu.Lock()
	for i, b := range bodies {
		index[b.ID] = i
		s.pos[i] = center.Add(geometry.Pt(e.jitter(), e.jitter()))
		s.half[i] = geometry.Size{Width: b.Size.Width / 2, Height: b.Size.Height / 2}
	}
	e.mu.Unlock()

	type link struct{ a, b int }
	links := make([]link, 0, len(springs))
	for _, sp := range springs {
		a, okA := index[sp.Source]
		b, okB := index[sp.Target]
		if !okA || !okB || a == b {
			continue
		}
		links = append(links, link{a, b})
	}

	for iter := 0; iter < o.Iterations; iter++ {
		if iter%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.Timeout(apperrors.CodeLayoutCancelled, "layout cancelled").
					WithCause(err).WithDetailsf("after %d iterations", iter).Build()
			}
		}

		for i := range s.force {
			s.force[i] = geometry.Point{}
		}

		e.repel(&s)

		for _, l := range links {
			d := s.pos[l.b].Sub(s.pos[l.a])
			dist := d.Len()
			if dist < geometry.Epsilon {
				continue
			}
			f := d.Scale(o.SpringStiffness * (dist - o.SpringLength) / dist)
			s.force[l.a] = s.force[l.a].Add(f)
			s.force[l.b] = s.force[l.b].Sub(f)
		}

		for i := range s.pos {
			s.force[i] = s.force[i].Add(center.Sub(s.pos[i]).Scale(o.Centering))
		}

		for i := range s.pos {
			s.vel[i] = s.vel[i].Add(s.force[i]).Scale(o.Damping)
			s.pos[i] = s.pos[i].Add(s.vel[i])
		}

		for pass := 0; pass < o.CollisionPasses; pass++ {
			e.resolveCollisions(&s, canvas)
		}
		e.clamp(&s, canvas)
	}

	for pass := 0; pass < o.SettlePasses; pass++ {
		moved := e.resolveCollisions(&s, canvas)
		e.clamp(&s, canvas)
		if !moved {
			break
		}
	}
	if e.overlapping(&s) {
		e.pack(&s, canvas)
	}

	out := make(map[string]geometry.Point, len(bodies))
	for i, b := range bodies {
		out[b.ID] = s.pos[i]
	}
	return out, nil
}

// repel applies Repulsion/d² between every unordered pair, with d floored at 1.
func (e *Engine) repel(s *state) {
	k := e.opts.Repulsion
	for i := range s.pos {
		for j := i + 1; j < len(s.pos); j++ {
			d := s.pos[j].Sub(s.pos[i])
			dist := d.Len()
			dir := d.Unit()
			if dist < geometry.Epsilon {
				// Coincident nodes get a fixed direction so they still separate.
				dir = geometry.Pt(1, 0)
			}
			dist = math.Max(dist, 1)
			f := dir.Scale(k / (dist * dist))
			s.force[i] = s.force[i].Sub(f)
			s.force[j] = s.force[j].Add(f)
		}
	}
}

// resolveCollisions pushes apart every pair whose padded boxes overlap on both
// axes, along the axis of least overlap, moving each node half the distance.
// A pair that the canvas edge would stop on that axis is pushed along the
// other one. It reports whether anything moved.
func (e *Engine) resolveCollisions(s *state, canvas geometry.Size) bool {
	moved := false
	for i := range s.pos {
		for j := i + 1; j < len(s.pos); j++ {
			overlapX, overlapY := e.overlap(s, i, j)
			if overlapX <= 0 || overlapY <= 0 {
				continue
			}
			moved = true
			dx := s.pos[j].X - s.pos[i].X
			dy := s.pos[j].Y - s.pos[i].Y
			pushX := direction(dx) * (overlapX + collisionSlack) / 2
			pushY := direction(dy) * (overlapY + collisionSlack) / 2

			alongX := overlapX < overlapY
			blockedX := pinned(s.pos[i].X-pushX, s.half[i].Width, canvas.Width) ||
				pinned(s.pos[j].X+pushX, s.half[j].Width, canvas.Width)
			blockedY := pinned(s.pos[i].Y-pushY, s.half[i].Height, canvas.Height) ||
				pinned(s.pos[j].Y+pushY, s.half[j].Height, canvas.Height)
			if alongX && blockedX && !blockedY {
				alongX = false
			} else if !alongX && blockedY && !blockedX {
				alongX = true
			}

			if alongX {
				s.pos[i].X -= pushX
				s.pos[j].X += pushX
			} else {
				s.pos[i].Y -= pushY
				s.pos[j].Y += pushY
			}
		}
	}
	return moved
}

// overlap returns how far the padded boxes of i and j intrude on each axis.
func (e *Engine) overlap(s *state, i, j int) (float64, float64) {
	x := s.half[i].Width + s.half[j].Width + e.opts.PaddingX - math.Abs(s.pos[j].X-s.pos[i].X)
	y := s.half[i].Height + s.half[j].Height + e.opts.PaddingY - math.Abs(s.pos[j].Y-s.pos[i].Y)
	return x, y
}

func (e *Engine) overlapping(s *state) bool {
	for i := range s.pos {
		for j := i + 1; j < len(s.pos); j++ {
			if x, y := e.overlap(s, i, j); x > 0 && y > 0 {
				return true
			}
		}
	}
	return false
}

// pinned reports whether a centre at v would leave the canvas on its axis.
func pinned(v, half, limit float64) bool {
	return v < half || v > limit-half
}

// pack lays the bodies out in rows, keeping their top to bottom, then left
// to right order. Rows are centred in the canvas.
func (e *Engine) pack(s *state, canvas geometry.Size) {
	order := make([]int, len(s.pos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := s.pos[order[a]], s.pos[order[b]]
		if pa.Y != pb.Y {
			return pa.Y < pb.Y
		}
		return pa.X < pb.X
	})

	type row struct {
		items  []int
		width  float64
		height float64
	}
	var rows []row
	var cur row
	for _, i := range order {
		w := 2 * s.half[i].Width
		if len(cur.items) > 0 {
			if cur.width+e.opts.PaddingX+w > canvas.Width {
				rows = append(rows, cur)
				cur = row{}
			} else {
				w += e.opts.PaddingX
			}
		}
		cur.items = append(cur.items, i)
		cur.width += w
		cur.height = math.Max(cur.height, 2*s.half[i].Height)
	}
	if len(cur.items) > 0 {
		rows = append(rows, cur)
	}

	total := -e.opts.PaddingY
	for _, r := range rows {
		total += r.height + e.opts.PaddingY
	}
	top := math.Max(0, (canvas.Height-total)/2)
	for _, r := range rows {
		left := math.Max(0, (canvas.Width-r.width)/2)
		for _, i := range r.items {
			s.pos[i] = geometry.Pt(clampAxis(left+s.half[i].Width, s.half[i].Width, canvas.Width), top+r.height/2)
			left += 2*s.half[i].Width + e.opts.PaddingX
		}
		top += r.height + e.opts.PaddingY
	}
}

func direction(d float64) float64 {
	if d < 0 {
		return -1
	}
	return 1
}

// clamp keeps every node's full box inside the canvas. Nodes wider than the
// canvas are centred.
func (e *Engine) clamp(s *state, canvas geometry.Size) {
	for i := range s.pos {
		s.pos[i].X = clampAxis(s.pos[i].X, s.half[i].Width, canvas.Width)
		s.pos[i].Y = clampAxis(s.pos[i].Y, s.half[i].Height, canvas.Height)
	}
}

func clampAxis(v, half, limit float64) float64 {
	if 2*half >= limit {
		return limit / 2
	}
	return math.Min(math.Max(v, half), limit-half)
}

// jitter returns a value in [-Jitter, Jitter). Callers hold e.mu.
func (e *Engine) jitter() float64 {
	return (e.rng.Float64()*2 - 1) * e.opts.Jitter
}

// Fit returns canvas scaled up, keeping its aspect ratio, until the padded
// node boxes cover at most MaxDensity of it. Sparse graphs get canvas back.
func (e *Engine) Fit(bodies []Body, canvas geometry.Size) geometry.Size {
	var area float64
	for _, b := range bodies {
		area += (b.Size.Width + e.opts.PaddingX) * (b.Size.Height + e.opts.PaddingY)
	}
	limit := canvas.Width * canvas.Height * e.opts.MaxDensity
	if limit <= 0 || area <= limit {
		return canvas
	}
	k := math.Sqrt(area / limit)
	return geometry.Size{Width: canvas.Width * k, Height: canvas.Height * k}
}

// Layout runs the simulation for doc on canvas, grown by Fit when the
// nodes are too dense for it, and returns a fresh layout snapshot with
// positions filled in and empty offset maps.
func (e *Engine) Layout(ctx context.Context, doc diagram.Document, canvas geometry.Size) (diagram.Layout, error) {
	bodies, springs := FromDocument(doc)
	pos, err := e.Run(ctx, bodies, springs, e.Fit(bodies, canvas))
	if err != nil {
		return diagram.Layout{}, err
	}
	l := diagram.NewLayout()
	l.Positions = pos
	return l, nil
}

// Restore reuses saved positions and scatters nodes that have none around
// the canvas centre, without simulating. Positions of nodes no longer in doc
// are dropped; offsets are carried over untouched.
func (e *Engine) Restore(saved diagram.Layout, doc diagram.Document, canvas geometry.Size) diagram.Layout {
	out := saved.Prune(doc)
	center := geometry.Pt(canvas.Width/2, canvas.Height/2)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range doc.Nodes {
		if _, ok := out.Positions[n.ID]; ok {
			continue
		}
		out.Positions[n.ID] = center.Add(geometry.Pt(e.jitter(), e.jitter()))
	}
	return out
}

// Place records a single node at p without touching any other position.
func Place(l diagram.Layout, nodeID string, p geometry.Point) diagram.Layout {
	out := l.Clone()
	out.Positions[nodeID] = p
	return out
}
