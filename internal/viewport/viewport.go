// Package viewport keeps the visible model-space rectangle of the canvas and
// converts between surface pixels and model coordinates for pan and zoom.
package viewport

import (
	"math"

	"brain2-canvas/internal/geometry"
)

// Options bounds zooming. Scale is surface pixels per model unit.
type Options struct {
	ZoomFactor float64 // default 1.1
	MinScale   float64 // default 0.1
	MaxScale   float64 // default 10
}

// DefaultOptions returns the stock zoom limits.
func DefaultOptions() Options {
	return Options{ZoomFactor: 1.1, MinScale: 0.1, MaxScale: 10}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ZoomFactor > 1 {
		d.ZoomFactor = o.ZoomFactor
	}
	if o.MinScale > 0 {
		d.MinScale = o.MinScale
	}
	if o.MaxScale > 0 {
		d.MaxScale = o.MaxScale
	}
	if d.MinScale > d.MaxScale {
		d.MinScale, d.MaxScale = d.MaxScale, d.MinScale
	}
	return d
}

// Viewport is an immutable pan/zoom state. Box is the visible region in
// model space; Pixels is the rendering surface size.
type Viewport struct {
	Box    geometry.Rect `json:"box"`
	Pixels geometry.Size `json:"pixels"`

	opts Options
}

// New starts at a 1:1 mapping between pixels and model units.
func New(pixels geometry.Size, opts Options) Viewport {
	pixels = sanitize(pixels)
	return Viewport{
		Box:    geometry.Rect{Width: pixels.Width, Height: pixels.Height},
		Pixels: pixels,
		opts:   opts.withDefaults(),
	}
}

func sanitize(s geometry.Size) geometry.Size {
	if s.Width <= 0 {
		s.Width = 1
	}
	if s.Height <= 0 {
		s.Height = 1
	}
	return s
}

// Scale returns surface pixels per model unit along x.
func (v Viewport) Scale() float64 {
	return v.Pixels.Width / v.Box.Width
}

// Matrix is the screen transform from model space to surface pixels.
func (v Viewport) Matrix() Matrix {
	sx := v.Pixels.Width / v.Box.Width
	sy := v.Pixels.Height / v.Box.Height
	return Matrix{A: sx, D: sy, E: -v.Box.X * sx, F: -v.Box.Y * sy}
}

// ToModel maps a surface point into model space via the inverse screen transform.
func (v Viewport) ToModel(screen geometry.Point) geometry.Point {
	inv, ok := v.Matrix().Invert()
	if !ok {
		return screen
	}
	return inv.Apply(screen)
}

// ToScreen maps a model point onto the surface.
func (v Viewport) ToScreen(model geometry.Point) geometry.Point {
	return v.Matrix().Apply(model)
}

// Pan moves the visible region so content follows a pointer that moved by
// delta surface pixels. Pan speed tracks the zoom level.
func (v Viewport) Pan(delta geometry.Point) Viewport {
	ratio := v.Box.Width / v.Pixels.Width
	v.Box.X -= delta.X * ratio
	v.Box.Y -= delta.Y * ratio
	return v
}

// Zoom scales the visible region by the zoom factor around the cursor,
// keeping the model point under the cursor fixed. A positive wheel delta
// zooms out, a negative one zooms in, zero does nothing.
func (v Viewport) Zoom(cursor geometry.Point, wheelDelta float64) Viewport {
	if wheelDelta == 0 {
		return v
	}
	o := v.opts.withDefaults()
	factor := o.ZoomFactor
	if wheelDelta < 0 {
		factor = 1 / factor
	}

	anchor := v.ToModel(cursor)

	w := v.Box.Width * factor
	scale := v.Pixels.Width / w
	scale = math.Min(math.Max(scale, o.MinScale), o.MaxScale)
	w = v.Pixels.Width / scale
	h := v.Box.Height * (w / v.Box.Width)

	v.Box = geometry.Rect{
		X:      anchor.X - cursor.X/v.Pixels.Width*w,
		Y:      anchor.Y - cursor.Y/v.Pixels.Height*h,
		Width:  w,
		Height: h,
	}
	return v
}

// Resize adapts to a new surface size keeping scale and origin.
func (v Viewport) Resize(pixels geometry.Size) Viewport {
	pixels = sanitize(pixels)
	scale := v.Scale()
	v.Pixels = pixels
	v.Box.Width = pixels.Width / scale
	v.Box.Height = pixels.Height / scale
	return v
}

// FitTo frames bounds with padding model units on every side, centred, at the
// largest allowed scale that shows all of it.
func (v Viewport) FitTo(bounds geometry.Rect, padding float64) Viewport {
	o := v.opts.withDefaults()
	target := bounds.Inset(padding, padding)
	if target.Width <= 0 || target.Height <= 0 {
		return v
	}
	scale := math.Min(v.Pixels.Width/target.Width, v.Pixels.Height/target.Height)
	scale = math.Min(math.Max(scale, o.MinScale), o.MaxScale)

	w := v.Pixels.Width / scale
	h := v.Pixels.Height / scale
	c := target.Center()
	v.Box = geometry.Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
	return v
}
