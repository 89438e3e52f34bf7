package diagram

import "brain2-canvas/internal/geometry"

// Layout is the persisted visual state of a diagram: node centre positions,
// node-property offsets (relative to the node centre) and
// relationship-property offsets (relative to the relationship label point).
type Layout struct {
	Positions                   map[string]geometry.Point `json:"nodePositions"`
	PropertyOffsets             map[string]geometry.Point `json:"propertyOffsets"`
	RelationshipPropertyOffsets map[string]geometry.Point `json:"relationshipPropertyOffsets"`
}

// NewLayout returns an empty layout with allocated maps.
func NewLayout() Layout {
	return Layout{
		Positions:                   make(map[string]geometry.Point),
		PropertyOffsets:             make(map[string]geometry.Point),
		RelationshipPropertyOffsets: make(map[string]geometry.Point),
	}
}

// Clone returns a deep copy.
func (l Layout) Clone() Layout {
	out := Layout{
		Positions:                   make(map[string]geometry.Point, len(l.Positions)),
		PropertyOffsets:             make(map[string]geometry.Point, len(l.PropertyOffsets)),
		RelationshipPropertyOffsets: make(map[string]geometry.Point, len(l.RelationshipPropertyOffsets)),
	}
	for k, v := range l.Positions {
		out.Positions[k] = v
	}
	for k, v := range l.PropertyOffsets {
		out.PropertyOffsets[k] = v
	}
	for k, v := range l.RelationshipPropertyOffsets {
		out.RelationshipPropertyOffsets[k] = v
	}
	return out
}

// Position returns the stored centre of a node.
func (l Layout) Position(nodeID string) (geometry.Point, bool) {
	p, ok := l.Positions[nodeID]
	return p, ok
}

// NodeRect returns the bounding box of n at its stored position.
func (l Layout) NodeRect(n Node) (geometry.Rect, bool) {
	p, ok := l.Positions[n.ID]
	if !ok {
		return geometry.Rect{}, false
	}
	return geometry.RectAround(p, n.Size()), true
}

// ClusterPadding and ClusterHeader size the box drawn around cluster members.
const (
	ClusterPadding = 20.0
	ClusterHeader  = 28.0
)

// SelectionPadding is the margin drawn around a multi-selection.
const SelectionPadding = 10.0

// membersRect unions the boxes of every placed member. Members without a
// position or missing from the document are skipped.
func (l Layout) membersRect(doc Document, nodeIDs []string) (geometry.Rect, bool) {
	var rects []geometry.Rect
	for _, id := range nodeIDs {
		n, ok := doc.Node(id)
		if !ok {
			continue
		}
		if r, ok := l.NodeRect(n); ok {
			rects = append(rects, r)
		}
	}
	return geometry.Bounds(rects)
}

// ClusterRect derives a cluster's box from the current member positions.
// The second result is false when no member can be placed.
func (l Layout) ClusterRect(doc Document, c Cluster) (geometry.Rect, bool) {
	box, ok := l.membersRect(doc, c.NodeIDs)
	if !ok {
		return geometry.Rect{}, false
	}
	box = box.Inset(ClusterPadding, ClusterPadding)
	box.Y -= ClusterHeader
	box.Height += ClusterHeader
	return box, true
}

// SelectionRect derives the box around a multi-selection.
func (l Layout) SelectionRect(doc Document, nodeIDs []string) (geometry.Rect, bool) {
	box, ok := l.membersRect(doc, nodeIDs)
	if !ok {
		return geometry.Rect{}, false
	}
	return box.Inset(SelectionPadding, SelectionPadding), true
}

// Prune drops positions and offsets whose owners no longer exist in doc.
func (l Layout) Prune(doc Document) Layout {
	out := l.Clone()
	for id := range out.Positions {
		if _, ok := doc.Node(id); !ok {
			delete(out.Positions, id)
		}
	}
	for id := range out.PropertyOffsets {
		if o, ok := doc.PropertyOwner(id); !ok || o.Kind != OwnerNode {
			delete(out.PropertyOffsets, id)
		}
	}
	for id := range out.RelationshipPropertyOffsets {
		if o, ok := doc.PropertyOwner(id); !ok || o.Kind != OwnerRelationship {
			delete(out.RelationshipPropertyOffsets, id)
		}
	}
	return out
}
