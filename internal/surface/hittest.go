package surface

import (
	"unicode/utf8"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/routing"
)

// Hit tolerances in model units.
const (
	edgeTolerance   = 6.0
	labelTolerance  = 12.0
	resizeHandle    = 12.0
	propertyHeight  = 20.0
	propertyPadding = 10.0
	curveSamples    = 16
)

// propertyRect is the clickable box around a property label.
func propertyRect(anchor geometry.Point, name string) geometry.Rect {
	w := diagram.NodeCharWidth*float64(utf8.RuneCountInString(name)) + propertyPadding
	return geometry.RectAround(anchor, geometry.Size{Width: w, Height: propertyHeight})
}

// HitTest returns what lies under a surface-pixel position, testing in
// reverse paint order. Empty canvas yields the background target.
func (s *Surface) HitTest(screen geometry.Point) interaction.Target {
	p := s.machine.Viewport().ToModel(screen)
	paths := s.Paths()

	anchors := routing.Anchors(s.doc, s.layout, paths)
	for i := len(anchors) - 1; i >= 0; i-- {
		a := anchors[i]
		prop, _, ok := s.doc.Property(a.PropertyID)
		if !ok || !propertyRect(a.Point, prop.Name).Contains(p) {
			continue
		}
		if a.OwnerKind == diagram.OwnerRelationship {
			return interaction.Target{Selection: interaction.RelationshipPropertySelection{ID: a.PropertyID}}
		}
		return interaction.Target{Selection: interaction.PropertySelection{ID: a.PropertyID}}
	}

	for i := len(s.doc.Nodes) - 1; i >= 0; i-- {
		n := s.doc.Nodes[i]
		if r, ok := s.layout.NodeRect(n); ok && r.Contains(p) {
			return interaction.Target{Selection: interaction.NodeSelection{ID: n.ID}}
		}
	}

	for i := len(paths) - 1; i >= 0; i-- {
		path := paths[i]
		if p.DistanceTo(path.Label) <= labelTolerance ||
			geometry.QuadraticDistance(p, path.Start, path.Control, path.End, curveSamples) <= edgeTolerance {
			return interaction.Target{Selection: interaction.RelationshipSelection{ID: path.RelationshipID}}
		}
	}

	for i := len(s.doc.Annotations) - 1; i >= 0; i-- {
		a := s.doc.Annotations[i]
		if a.Rect().Contains(p) {
			return interaction.Target{Selection: interaction.AnnotationSelection{ID: a.ID}}
		}
	}

	for i := len(s.doc.Images) - 1; i >= 0; i-- {
		im := s.doc.Images[i]
		r := im.Rect()
		if !r.Contains(p) {
			continue
		}
		t := interaction.Target{Selection: interaction.ImageSelection{ID: im.ID}}
		if r.Max().DistanceTo(p) <= resizeHandle {
			t.Handle = interaction.HandleResize
		}
		return t
	}

	for i := len(s.doc.Clusters) - 1; i >= 0; i-- {
		c := s.doc.Clusters[i]
		if r, ok := s.layout.ClusterRect(s.doc, c); ok && r.Contains(p) {
			return interaction.Target{Selection: interaction.ClusterSelection{ID: c.ID}}
		}
	}
	return interaction.Target{}
}
