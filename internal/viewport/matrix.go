package viewport

import (
	"math"

	"brain2-canvas/internal/geometry"
)

// Matrix is a 2D affine transform laid out like an SVG matrix:
//
//	x' = A·x + C·y + E
//	y' = B·x + D·y + F
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the transform that changes nothing.
var Identity = Matrix{A: 1, D: 1}

// Apply transforms p.
func (m Matrix) Apply(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Multiply returns m·n, the transform that applies n first and then m.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Invert returns the inverse transform. A singular matrix yields false.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < geometry.Epsilon {
		return Matrix{}, false
	}
	inv := 1 / det
	return Matrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, true
}
