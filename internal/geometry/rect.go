package geometry

import "math"

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle given by its top-left corner and size.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectAround returns the rectangle of the given size centred on c.
func RectAround(c Point, s Size) Rect {
	return Rect{X: c.X - s.Width/2, Y: c.Y - s.Height/2, Width: s.Width, Height: s.Height}
}

// Center returns the centre of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Max returns the bottom-right corner of r.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Contains reports whether p lies inside r, borders included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Overlaps reports whether r and o share interior area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width && r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Inset grows r by dx on the left and right and dy on the top and bottom.
// Negative values shrink it.
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Bounds returns the union of rects and false when rects is empty.
func Bounds(rects []Rect) (Rect, bool) {
	if len(rects) == 0 {
		return Rect{}, false
	}
	out := rects[0]
	for _, r := range rects[1:] {
		out = out.Union(r)
	}
	return out, true
}

// RectangleIntersection returns the point where the ray from center towards
// aim leaves a rectangle of size s centred on center. The exit side is chosen
// by comparing the ray's slope with the rectangle's diagonal. Coincident
// points return center unchanged.
func RectangleIntersection(center, aim Point, s Size) Point {
	dx := aim.X - center.X
	dy := aim.Y - center.Y
	if math.Abs(dx) < Epsilon && math.Abs(dy) < Epsilon {
		return center
	}

	halfW := s.Width / 2
	halfH := s.Height / 2

	// |dy/dx| <= h/w means the ray leaves through a vertical side.
	if math.Abs(dy)*halfW <= math.Abs(dx)*halfH {
		k := halfW / math.Abs(dx)
		return Point{X: center.X + math.Copysign(halfW, dx), Y: center.Y + dy*k}
	}
	k := halfH / math.Abs(dy)
	return Point{X: center.X + dx*k, Y: center.Y + math.Copysign(halfH, dy)}
}
