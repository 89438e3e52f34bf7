// Package diagram holds the canonical diagram model: nodes, relationships,
// properties, clusters, annotations and images, plus the layout snapshot that
// stores where things are drawn. Every mutation returns a new Document and
// leaves untouched entities shared with the previous one.
package diagram

import (
	"unicode/utf8"

	"brain2-canvas/internal/geometry"
)

// Node dimensions are derived from the name.
const (
	MinNodeWidth   = 80.0
	NodeCharWidth  = 7.0
	NodeTextMargin = 30.0
	NodeHeight     = 40.0
)

// DefaultRelationshipLabel is used for relationships created by linking two nodes.
const DefaultRelationshipLabel = "Hành vi"

// LinkStyle is the stroke used for a relationship.
type LinkStyle string

const (
	LinkSolid  LinkStyle = "solid"
	LinkDashed LinkStyle = "dashed"
)

// Valid reports whether s is a known link style.
func (s LinkStyle) Valid() bool {
	return s == LinkSolid || s == LinkDashed
}

// ArrowStyle selects which ends of a relationship carry arrowheads.
type ArrowStyle string

const (
	ArrowForward  ArrowStyle = "forward"
	ArrowBackward ArrowStyle = "backward"
	ArrowBoth     ArrowStyle = "both"
	ArrowNone     ArrowStyle = "none"
)

// Valid reports whether s is a known arrow style.
func (s ArrowStyle) Valid() bool {
	switch s {
	case ArrowForward, ArrowBackward, ArrowBoth, ArrowNone:
		return true
	}
	return false
}

// Property is a labelled leaf owned by exactly one node or relationship.
type Property struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// Node is a diagram object rendered as a rectangle.
type Node struct {
	ID         string     `json:"id" validate:"entityid"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties" validate:"dive"`
	Color      string     `json:"color,omitempty"`
}

// Size returns the rendered size of a node with the given name:
// width = max(80, 7·len(name)+30), height = 40.
func Size(name string) geometry.Size {
	w := NodeCharWidth*float64(utf8.RuneCountInString(name)) + NodeTextMargin
	if w < MinNodeWidth {
		w = MinNodeWidth
	}
	return geometry.Size{Width: w, Height: NodeHeight}
}

// Size returns the node's derived dimensions.
func (n Node) Size() geometry.Size {
	return Size(n.Name)
}

// Relationship is a labelled connection between two nodes.
type Relationship struct {
	ID         string     `json:"id" validate:"required"`
	Source     string     `json:"source" validate:"required"`
	Target     string     `json:"target" validate:"required"`
	Label      string     `json:"label"`
	LinkStyle  LinkStyle  `json:"linkStyle" validate:"omitempty,oneof=solid dashed"`
	ArrowStyle ArrowStyle `json:"arrowStyle" validate:"omitempty,oneof=forward backward both none"`
	// ControlOffset bends the edge; it is relative to the midpoint of the
	// two node centres.
	ControlOffset *geometry.Point `json:"controlPointOffset,omitempty"`
	Properties    []Property      `json:"properties" validate:"dive"`
}

// SelfLoop reports whether the relationship starts and ends on the same node.
func (r Relationship) SelfLoop() bool {
	return r.Source == r.Target
}

// Touches reports whether nodeID is either endpoint.
func (r Relationship) Touches(nodeID string) bool {
	return r.Source == nodeID || r.Target == nodeID
}

// Cluster is a named group of nodes. Its box is always derived from members.
type Cluster struct {
	ID      string   `json:"id" validate:"required"`
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
	Color   string   `json:"color,omitempty"`
}

// Has reports whether nodeID is a member.
func (c Cluster) Has(nodeID string) bool {
	for _, id := range c.NodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Annotation layout constants.
const (
	DefaultAnnotationWidth = 200.0
	MinAnnotationHeight    = 60.0
	AnnotationLineHeight   = 18.0
	AnnotationPadding      = 12.0
)

// Annotation is a free floating note.
type Annotation struct {
	ID       string         `json:"id" validate:"required"`
	Text     string         `json:"text"`
	Position geometry.Point `json:"position"`
	Width    float64        `json:"width" validate:"gt=0"`
	Color    string         `json:"color,omitempty"`
}

// Height derives the note height from its wrapped text.
func (a Annotation) Height() float64 {
	perLine := int((a.Width - 2*AnnotationPadding) / NodeCharWidth)
	if perLine < 1 {
		perLine = 1
	}
	lines := 0
	for _, para := range splitLines(a.Text) {
		n := utf8.RuneCountInString(para)
		l := (n + perLine - 1) / perLine
		if l == 0 {
			l = 1
		}
		lines += l
	}
	h := float64(lines)*AnnotationLineHeight + 2*AnnotationPadding
	if h < MinAnnotationHeight {
		h = MinAnnotationHeight
	}
	return h
}

// Rect returns the note's bounds. Position is the top-left corner.
func (a Annotation) Rect() geometry.Rect {
	return geometry.Rect{X: a.Position.X, Y: a.Position.Y, Width: a.Width, Height: a.Height()}
}

// Image is a placed picture. Position is the top-left corner.
type Image struct {
	ID       string         `json:"id" validate:"required"`
	Source   string         `json:"src" validate:"required"`
	Position geometry.Point `json:"position"`
	Width    float64        `json:"width" validate:"gt=0"`
	Height   float64        `json:"height" validate:"gt=0"`
}

// Rect returns the image bounds.
func (i Image) Rect() geometry.Rect {
	return geometry.Rect{X: i.Position.X, Y: i.Position.Y, Width: i.Width, Height: i.Height}
}

// AspectRatio returns width/height, or 1 for degenerate images.
func (i Image) AspectRatio() float64 {
	if i.Height <= 0 {
		return 1
	}
	return i.Width / i.Height
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
