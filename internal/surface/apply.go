package surface

import (
	"go.uber.org/zap"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/layout"
	"brain2-canvas/internal/routing"
)

// Apply mutates the owned document and layout. Mutations that reference
// missing entities are no-ops. Structural edits record an undo step;
// continuous gestures rely on the Checkpoint emitted when they start.
func (s *Surface) Apply(mu interaction.Mutation) {
	switch m := mu.(type) {
	case interaction.Checkpoint:
		s.record()
	case interaction.MoveNodes:
		for id, p := range m.Positions {
			if _, ok := s.doc.Node(id); ok && p.IsFinite() {
				s.layout.Positions[id] = p
			}
		}
	case interaction.MoveProperty:
		if o, ok := s.doc.PropertyOwner(m.PropertyID); ok && o.Kind == diagram.OwnerNode {
			s.layout.PropertyOffsets[m.PropertyID] = m.Offset
		}
	case interaction.MoveRelationshipProperty:
		if o, ok := s.doc.PropertyOwner(m.PropertyID); ok && o.Kind == diagram.OwnerRelationship {
			s.layout.RelationshipPropertyOffsets[m.PropertyID] = m.Offset
		}
	case interaction.BendRelationship:
		off := m.Offset
		s.doc, _ = s.doc.UpdateRelationship(m.RelationshipID, func(r diagram.Relationship) diagram.Relationship {
			r.ControlOffset = &off
			return r
		})
	case interaction.MoveAnnotation:
		s.doc, _ = s.doc.UpdateAnnotation(m.AnnotationID, func(a diagram.Annotation) diagram.Annotation {
			a.Position = m.Position
			return a
		})
	case interaction.MoveImage:
		s.doc, _ = s.doc.UpdateImage(m.ImageID, func(im diagram.Image) diagram.Image {
			im.Position = m.Position
			return im
		})
	case interaction.ResizeImage:
		s.doc, _ = s.doc.UpdateImage(m.ImageID, func(im diagram.Image) diagram.Image {
			im.Width, im.Height = m.Width, m.Height
			return im
		})
	case interaction.CreateRelationship:
		if doc, _, err := s.doc.Link(m.Source, m.Target); err == nil {
			s.commit(doc)
		} else {
			s.logger.Debug("link ignored", zap.String("source", m.Source), zap.String("target", m.Target), zap.Error(err))
		}
	case interaction.CreateCluster:
		if doc, _, ok := s.doc.Group(m.Name, m.NodeIDs); ok {
			s.commit(doc)
		}
	case interaction.Ungroup:
		if doc, ok := s.doc.Ungroup(m.ClusterID); ok {
			s.commit(doc)
		}
	case interaction.Delete:
		d := &deleter{doc: s.doc}
		m.Target.Accept(d)
		if d.ok {
			s.commit(d.doc)
		}
	case interaction.DuplicateNode:
		s.duplicate(m.NodeID)
	case interaction.Rename:
		r := &renamer{doc: s.doc, text: m.Text}
		m.Target.Accept(r)
		if r.ok {
			s.commit(r.doc)
		}
	case interaction.SetColor:
		if m.Color != "" && !geometry.ValidColor(m.Color) {
			return
		}
		c := &colorer{doc: s.doc, color: m.Color}
		m.Target.Accept(c)
		if c.ok {
			s.commit(c.doc)
		}
	case interaction.SetLinkStyle:
		s.updateRelationship(m.RelationshipID, func(r diagram.Relationship) diagram.Relationship {
			r.LinkStyle = m.Style
			return r
		})
	case interaction.SetArrowStyle:
		s.updateRelationship(m.RelationshipID, func(r diagram.Relationship) diagram.Relationship {
			r.ArrowStyle = m.Style
			return r
		})
	case interaction.Undo:
		s.Undo()
	case interaction.Redo:
		s.Redo()
	}
}

// Undo steps back one recorded state.
func (s *Surface) Undo() bool {
	e, ok := s.history.Undo(s.entry())
	if ok {
		s.restore(e)
	}
	return ok
}

// Redo steps forward again.
func (s *Surface) Redo() bool {
	e, ok := s.history.Redo(s.entry())
	if ok {
		s.restore(e)
	}
	return ok
}

// commit records the current state and installs doc, keeping layout
// positions and offsets in step with it.
func (s *Surface) commit(doc diagram.Document) {
	s.record()
	s.doc = doc
	s.layout = routing.Reconcile(doc, s.layout.Prune(doc))
}

func (s *Surface) updateRelationship(id string, fn func(diagram.Relationship) diagram.Relationship) {
	if doc, ok := s.doc.UpdateRelationship(id, fn); ok {
		s.commit(doc)
	}
}

// duplicate places the copy next to its source without re-running the
// simulation.
func (s *Surface) duplicate(id string) {
	doc, n, ok := s.doc.DuplicateNode(id)
	if !ok {
		return
	}
	s.commit(doc)
	if p, ok := s.layout.Position(id); ok {
		s.layout = layout.Place(s.layout, n.ID, p.Add(s.opts.DuplicateOffset))
	} else {
		s.layout = s.engine.Restore(s.layout, s.doc, s.opts.Canvas)
	}
}

// Merge appends incoming to the document under policy. New nodes are
// scattered around the canvas centre; existing positions are kept.
func (s *Surface) Merge(incoming diagram.Document, policy diagram.MergePolicy) (diagram.MergeResult, error) {
	res, err := s.doc.Merge(incoming, policy)
	if err != nil {
		return res, err
	}
	s.commit(res.Document)
	s.layout = routing.Reconcile(s.doc, s.engine.Restore(s.layout, s.doc, s.opts.Canvas))
	return res, nil
}

// deleter applies the cascade that matches each selectable kind.
type deleter struct {
	doc diagram.Document
	ok  bool
}

func (d *deleter) VisitNode(s interaction.NodeSelection) {
	d.doc, d.ok = d.doc.DeleteNode(s.ID)
}

func (d *deleter) VisitProperty(s interaction.PropertySelection) {
	d.doc, d.ok = d.doc.DeleteProperty(s.ID)
}

func (d *deleter) VisitRelationship(s interaction.RelationshipSelection) {
	d.doc, d.ok = d.doc.DeleteRelationship(s.ID)
}

func (d *deleter) VisitRelationshipProperty(s interaction.RelationshipPropertySelection) {
	d.doc, d.ok = d.doc.DeleteProperty(s.ID)
}

func (d *deleter) VisitImage(s interaction.ImageSelection) {
	d.doc, d.ok = d.doc.DeleteImage(s.ID)
}

func (d *deleter) VisitCluster(s interaction.ClusterSelection) {
	d.doc, d.ok = d.doc.Ungroup(s.ID)
}

func (d *deleter) VisitAnnotation(s interaction.AnnotationSelection) {
	d.doc, d.ok = d.doc.DeleteAnnotation(s.ID)
}

func (d *deleter) VisitLinkLine(s interaction.LinkLineSelection) {
	d.doc, d.ok = d.doc.DeleteRelationship(s.ID)
}

// renamer writes edited text back to the entity it came from.
type renamer struct {
	doc  diagram.Document
	text string
	ok   bool
}

func (r *renamer) VisitNode(s interaction.NodeSelection) {
	r.doc, r.ok = r.doc.UpdateNode(s.ID, func(n diagram.Node) diagram.Node {
		n.Name = r.text
		return n
	})
}

func (r *renamer) VisitProperty(s interaction.PropertySelection) {
	r.renameProperty(s.ID)
}

func (r *renamer) VisitRelationship(s interaction.RelationshipSelection) {
	r.doc, r.ok = r.doc.UpdateRelationship(s.ID, func(rel diagram.Relationship) diagram.Relationship {
		rel.Label = r.text
		return rel
	})
}

func (r *renamer) VisitRelationshipProperty(s interaction.RelationshipPropertySelection) {
	r.renameProperty(s.ID)
}

func (r *renamer) renameProperty(id string) {
	r.doc, r.ok = r.doc.UpdateProperty(id, func(p diagram.Property) diagram.Property {
		p.Name = r.text
		return p
	})
}

func (r *renamer) VisitImage(interaction.ImageSelection) {}

func (r *renamer) VisitCluster(s interaction.ClusterSelection) {
	r.doc, r.ok = r.doc.UpdateCluster(s.ID, func(c diagram.Cluster) diagram.Cluster {
		c.Name = r.text
		return c
	})
}

func (r *renamer) VisitAnnotation(s interaction.AnnotationSelection) {
	r.doc, r.ok = r.doc.UpdateAnnotation(s.ID, func(a diagram.Annotation) diagram.Annotation {
		a.Text = r.text
		return a
	})
}

func (r *renamer) VisitLinkLine(s interaction.LinkLineSelection) {
	r.VisitRelationship(interaction.RelationshipSelection(s))
}

// colorer sets background colours. Only nodes, clusters and notes have one.
type colorer struct {
	doc   diagram.Document
	color string
	ok    bool
}

func (c *colorer) VisitNode(s interaction.NodeSelection) {
	c.doc, c.ok = c.doc.UpdateNode(s.ID, func(n diagram.Node) diagram.Node {
		n.Color = c.color
		return n
	})
}

func (c *colorer) VisitProperty(interaction.PropertySelection)                         {}
func (c *colorer) VisitRelationship(interaction.RelationshipSelection)                 {}
func (c *colorer) VisitRelationshipProperty(interaction.RelationshipPropertySelection) {}
func (c *colorer) VisitImage(interaction.ImageSelection)                               {}
func (c *colorer) VisitLinkLine(interaction.LinkLineSelection)                         {}

func (c *colorer) VisitCluster(s interaction.ClusterSelection) {
	c.doc, c.ok = c.doc.UpdateCluster(s.ID, func(cl diagram.Cluster) diagram.Cluster {
		cl.Color = c.color
		return cl
	})
}

func (c *colorer) VisitAnnotation(s interaction.AnnotationSelection) {
	c.doc, c.ok = c.doc.UpdateAnnotation(s.ID, func(a diagram.Annotation) diagram.Annotation {
		a.Color = c.color
		return a
	})
}
