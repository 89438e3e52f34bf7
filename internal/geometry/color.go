package geometry

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default colours used when an entity has no background colour set.
const (
	DefaultNodeColor       = "#ffffff"
	DefaultClusterColor    = "#f3f4f6"
	DefaultAnnotationColor = "#fef3c7"

	darkText  = "#111827"
	lightText = "#ffffff"
)

// luminanceThreshold splits backgrounds that need dark text from those that
// need light text, using WCAG relative luminance.
const luminanceThreshold = 0.179

// ContrastText returns a text colour readable on the given background.
// Unparseable colours are treated as the default white background.
func ContrastText(background string) string {
	c, err := colorful.Hex(background)
	if err != nil {
		return darkText
	}
	r, g, b := c.LinearRgb()
	if 0.2126*r+0.7152*g+0.0722*b > luminanceThreshold {
		return darkText
	}
	return lightText
}

// Shade darkens (amount > 0) or lightens (amount < 0) a hex colour in HCL
// space, keeping hue. amount is a fraction of the current lightness.
func Shade(hex string, amount float64) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return hex
	}
	h, chroma, l := c.Hcl()
	l *= 1 - amount
	if l < 0 {
		l = 0
	}
	if l > 1 {
		l = 1
	}
	return colorful.Hcl(h, chroma, l).Clamped().Hex()
}

// BorderFor returns the border colour drawn around an entity with the given
// background.
func BorderFor(background string) string {
	return Shade(background, 0.25)
}

// ValidColor reports whether s parses as a #rrggbb or #rgb colour.
func ValidColor(s string) bool {
	_, err := colorful.Hex(s)
	return err == nil
}
