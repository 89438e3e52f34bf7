package routing

import (
	"math"
	"unicode/utf8"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
)

// Property label placement constants.
const (
	AnchorBaseDistance = 20.0
	AnchorPerChar      = 2.5
)

// Anchor is where a property label is drawn.
type Anchor struct {
	PropertyID string            `json:"propertyId"`
	OwnerID    string            `json:"ownerId"`
	OwnerKind  diagram.OwnerKind `json:"-"`
	Origin     geometry.Point    `json:"origin"`
	Point      geometry.Point    `json:"point"`
	Offset     geometry.Point    `json:"offset"`
	Saved      bool              `json:"saved"`
}

// anchorAngle spreads count labels evenly, the first pointing straight up.
func anchorAngle(i, count int) float64 {
	return float64(i)/float64(count)*2*math.Pi - math.Pi/2
}

func anchorDistance(name string) float64 {
	return AnchorBaseDistance + AnchorPerChar*float64(utf8.RuneCountInString(name))
}

// DefaultNodeOffset places the i-th of count properties of a node. The
// result is relative to the node centre: the boundary crossing in the
// label's direction pushed out by the name-dependent distance.
func DefaultNodeOffset(i, count int, name string, size geometry.Size) geometry.Point {
	dir := geometry.Polar(anchorAngle(i, count), 1)
	edge := geometry.RectangleIntersection(geometry.Point{}, dir.Scale(1000), size)
	return edge.Add(dir.Scale(anchorDistance(name)))
}

// DefaultRelationshipOffset places the i-th of count properties of a
// relationship, relative to its label point.
func DefaultRelationshipOffset(i, count int, name string) geometry.Point {
	return geometry.Polar(anchorAngle(i, count), anchorDistance(name))
}

// Reconcile returns a copy of l whose offset maps hold exactly the current
// properties: saved offsets are kept, unseen ids get the default placement
// and offsets of properties that no longer exist are dropped.
func Reconcile(doc diagram.Document, l diagram.Layout) diagram.Layout {
	out := diagram.Layout{
		Positions:                   l.Positions,
		PropertyOffsets:             make(map[string]geometry.Point),
		RelationshipPropertyOffsets: make(map[string]geometry.Point),
	}
	if out.Positions == nil {
		out.Positions = make(map[string]geometry.Point)
	}
	for _, n := range doc.Nodes {
		size := n.Size()
		for i, p := range n.Properties {
			if off, ok := l.PropertyOffsets[p.ID]; ok {
				out.PropertyOffsets[p.ID] = off
				continue
			}
			out.PropertyOffsets[p.ID] = DefaultNodeOffset(i, len(n.Properties), p.Name, size)
		}
	}
	for _, r := range doc.Relationships {
		for i, p := range r.Properties {
			if off, ok := l.RelationshipPropertyOffsets[p.ID]; ok {
				out.RelationshipPropertyOffsets[p.ID] = off
				continue
			}
			out.RelationshipPropertyOffsets[p.ID] = DefaultRelationshipOffset(i, len(r.Properties), p.Name)
		}
	}
	return out
}

// Anchors resolves every property label to an absolute point. Node
// properties hang off the node centre, relationship properties off the
// routed label point. Owners that are not placed are skipped.
func Anchors(doc diagram.Document, l diagram.Layout, paths []Path) []Anchor {
	labels := make(map[string]geometry.Point, len(paths))
	for _, p := range paths {
		labels[p.RelationshipID] = p.Label
	}

	var out []Anchor
	for _, n := range doc.Nodes {
		c, ok := l.Position(n.ID)
		if !ok {
			continue
		}
		for i, p := range n.Properties {
			off, saved := l.PropertyOffsets[p.ID]
			if !saved {
				off = DefaultNodeOffset(i, len(n.Properties), p.Name, n.Size())
			}
			out = append(out, Anchor{
				PropertyID: p.ID, OwnerID: n.ID, OwnerKind: diagram.OwnerNode,
				Origin: c, Point: c.Add(off), Offset: off, Saved: saved,
			})
		}
	}
	for _, r := range doc.Relationships {
		label, ok := labels[r.ID]
		if !ok {
			continue
		}
		for i, p := range r.Properties {
			off, saved := l.RelationshipPropertyOffsets[p.ID]
			if !saved {
				off = DefaultRelationshipOffset(i, len(r.Properties), p.Name)
			}
			out = append(out, Anchor{
				PropertyID: p.ID, OwnerID: r.ID, OwnerKind: diagram.OwnerRelationship,
				Origin: label, Point: label.Add(off), Offset: off, Saved: saved,
			})
		}
	}
	return out
}
