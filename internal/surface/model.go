package surface

import (
	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
)

// modelView answers the machine's queries against the surface's state.
type modelView struct {
	s *Surface
}

var _ interaction.Model = modelView{}

func (m modelView) NodePosition(id string) (geometry.Point, bool) {
	if _, ok := m.s.doc.Node(id); !ok {
		return geometry.Point{}, false
	}
	return m.s.layout.Position(id)
}

func (m modelView) PropertyOffset(id string) (geometry.Point, bool) {
	o, ok := m.s.doc.PropertyOwner(id)
	if !ok || o.Kind != diagram.OwnerNode {
		return geometry.Point{}, false
	}
	if _, placed := m.s.layout.Position(o.ID); !placed {
		return geometry.Point{}, false
	}
	off, ok := m.s.layout.PropertyOffsets[id]
	return off, ok
}

func (m modelView) RelationshipMidpoint(id string) (geometry.Point, bool) {
	p, ok := m.s.router.RouteOne(m.s.doc, m.s.layout, id)
	if !ok {
		return geometry.Point{}, false
	}
	return p.Midpoint, true
}

func (m modelView) RelationshipPropertyOffset(id string) (geometry.Point, bool) {
	o, ok := m.s.doc.PropertyOwner(id)
	if !ok || o.Kind != diagram.OwnerRelationship {
		return geometry.Point{}, false
	}
	if _, routed := m.s.router.RouteOne(m.s.doc, m.s.layout, o.ID); !routed {
		return geometry.Point{}, false
	}
	off, ok := m.s.layout.RelationshipPropertyOffsets[id]
	return off, ok
}

func (m modelView) ClusterMembers(id string) []string {
	c, ok := m.s.doc.Cluster(id)
	if !ok {
		return nil
	}
	return c.NodeIDs
}

func (m modelView) AnnotationPosition(id string) (geometry.Point, bool) {
	a, ok := m.s.doc.Annotation(id)
	return a.Position, ok
}

func (m modelView) ImageRect(id string) (geometry.Rect, bool) {
	im, ok := m.s.doc.Image(id)
	if !ok {
		return geometry.Rect{}, false
	}
	return im.Rect(), true
}

func (m modelView) Text(sel interaction.Selection) (string, bool, bool) {
	r := &textReader{doc: m.s.doc}
	sel.Accept(r)
	return r.text, r.multiline, r.ok
}

// textReader finds the editable text of each selectable kind.
type textReader struct {
	doc       diagram.Document
	text      string
	multiline bool
	ok        bool
}

func (r *textReader) VisitNode(s interaction.NodeSelection) {
	n, ok := r.doc.Node(s.ID)
	r.text, r.ok = n.Name, ok
}

func (r *textReader) VisitProperty(s interaction.PropertySelection) {
	p, _, ok := r.doc.Property(s.ID)
	r.text, r.ok = p.Name, ok
}

func (r *textReader) VisitRelationship(s interaction.RelationshipSelection) {
	rel, ok := r.doc.Relationship(s.ID)
	r.text, r.ok = rel.Label, ok
}

func (r *textReader) VisitRelationshipProperty(s interaction.RelationshipPropertySelection) {
	p, _, ok := r.doc.Property(s.ID)
	r.text, r.ok = p.Name, ok
}

func (r *textReader) VisitImage(interaction.ImageSelection) {}

func (r *textReader) VisitCluster(s interaction.ClusterSelection) {
	c, ok := r.doc.Cluster(s.ID)
	r.text, r.ok = c.Name, ok
}

func (r *textReader) VisitAnnotation(s interaction.AnnotationSelection) {
	a, ok := r.doc.Annotation(s.ID)
	r.text, r.ok, r.multiline = a.Text, ok, true
}

func (r *textReader) VisitLinkLine(s interaction.LinkLineSelection) {
	r.VisitRelationship(interaction.RelationshipSelection(s))
}
