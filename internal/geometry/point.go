// Package geometry holds the pure geometric primitives used by layout, routing
// and rendering: points, rectangles, rectangle-ray intersection, quadratic
// Bézier evaluation and colour contrast helpers. Nothing here keeps state.
package geometry

import "math"

// Epsilon is the tolerance used for degenerate-length checks.
const Epsilon = 1e-9

// Point is a position or displacement in model space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Len returns the Euclidean length of p as a vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// DistanceTo calculates the Euclidean distance between two points.
func (p Point) DistanceTo(q Point) float64 {
	return q.Sub(p).Len()
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Normal returns the unit perpendicular of p rotated a quarter turn
// counter-clockwise. A zero vector yields the upward normal.
func (p Point) Normal() Point {
	l := p.Len()
	if l < Epsilon {
		return Point{X: 0, Y: -1}
	}
	return Point{X: -p.Y / l, Y: p.X / l}
}

// Unit returns p scaled to length one, or the zero vector when p is degenerate.
func (p Point) Unit() Point {
	l := p.Len()
	if l < Epsilon {
		return Point{}
	}
	return p.Scale(1 / l)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Equal reports whether p and q coincide within Epsilon.
func (p Point) Equal(q Point) bool {
	return math.Abs(p.X-q.X) < Epsilon && math.Abs(p.Y-q.Y) < Epsilon
}

// Polar returns the point at distance r from the origin along angle theta (radians).
func Polar(theta, r float64) Point {
	return Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// QuadraticPoint evaluates the quadratic Bézier (start, control, end) at t.
func QuadraticPoint(start, control, end Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*start.X + 2*u*t*control.X + t*t*end.X,
		Y: u*u*start.Y + 2*u*t*control.Y + t*t*end.Y,
	}
}

// QuadraticMidpoint is QuadraticPoint at t=0.5, i.e. 0.25·start + 0.5·control + 0.25·end.
func QuadraticMidpoint(start, control, end Point) Point {
	return Point{
		X: 0.25*start.X + 0.5*control.X + 0.25*end.X,
		Y: 0.25*start.Y + 0.5*control.Y + 0.25*end.Y,
	}
}

// SegmentDistance returns the distance from p to the segment ab.
func SegmentDistance(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 < Epsilon {
		return p.DistanceTo(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.DistanceTo(a.Add(ab.Scale(t)))
}

// QuadraticDistance approximates the distance from p to the quadratic Bézier
// by sampling it into steps segments.
func QuadraticDistance(p, start, control, end Point, steps int) float64 {
	if steps < 1 {
		steps = 1
	}
	best := math.Inf(1)
	prev := start
	for i := 1; i <= steps; i++ {
		next := QuadraticPoint(start, control, end, float64(i)/float64(steps))
		best = math.Min(best, SegmentDistance(p, prev, next))
		prev = next
	}
	return best
}
