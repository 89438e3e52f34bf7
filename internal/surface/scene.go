package surface

import (
	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/routing"
	"brain2-canvas/internal/viewport"
)

// Palette is the resolved colouring of a box.
type Palette struct {
	Fill   string `json:"fill"`
	Border string `json:"border"`
	Text   string `json:"text"`
}

func paletteFor(color, fallback string) Palette {
	if color == "" || !geometry.ValidColor(color) {
		color = fallback
	}
	return Palette{Fill: color, Border: geometry.BorderFor(color), Text: geometry.ContrastText(color)}
}

type NodeView struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Rect          geometry.Rect `json:"rect"`
	Palette       Palette       `json:"palette"`
	Selected      bool          `json:"selected,omitempty"`
	MultiSelected bool          `json:"multiSelected,omitempty"`
	LinkSource    bool          `json:"linkSource,omitempty"`
}

type EdgeView struct {
	routing.Path
	Source     string             `json:"source"`
	Target     string             `json:"target"`
	Text       string             `json:"text"`
	LinkStyle  diagram.LinkStyle  `json:"linkStyle"`
	ArrowStyle diagram.ArrowStyle `json:"arrowStyle"`
	Selected   bool               `json:"selected,omitempty"`
	Hovered    bool               `json:"hovered,omitempty"`
}

type PropertyView struct {
	routing.Anchor
	Kind     interaction.Kind `json:"kind"`
	Name     string           `json:"name"`
	Rect     geometry.Rect    `json:"rect"`
	Selected bool             `json:"selected,omitempty"`
}

type ClusterView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Rect     geometry.Rect `json:"rect"`
	Header   geometry.Rect `json:"header"`
	Palette  Palette       `json:"palette"`
	Selected bool          `json:"selected,omitempty"`
}

type AnnotationView struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Rect     geometry.Rect `json:"rect"`
	Palette  Palette       `json:"palette"`
	Selected bool          `json:"selected,omitempty"`
}

type ImageView struct {
	ID       string        `json:"id"`
	Source   string        `json:"src"`
	Rect     geometry.Rect `json:"rect"`
	Selected bool          `json:"selected,omitempty"`
}

// Scene is everything a renderer needs for one frame, derived from the
// current state on every call.
type Scene struct {
	Title       string            `json:"title"`
	Clusters    []ClusterView     `json:"clusters"`
	Images      []ImageView       `json:"images"`
	Annotations []AnnotationView  `json:"annotations"`
	Edges       []EdgeView        `json:"edges"`
	Nodes       []NodeView        `json:"nodes"`
	Properties  []PropertyView    `json:"properties"`
	MultiBox    *geometry.Rect    `json:"multiSelectBox,omitempty"`
	Bounds      *geometry.Rect    `json:"bounds,omitempty"`
	State       interaction.State `json:"state"`
	Viewport    viewport.Viewport `json:"viewport"`
	CanUndo     bool              `json:"canUndo"`
	CanRedo     bool              `json:"canRedo"`
}

// Scene derives the current frame.
func (s *Surface) Scene() Scene {
	st := s.machine.State()
	selected := func(k interaction.Kind, id string) bool {
		return st.Selection != nil && st.Selection.Kind == k && st.Selection.ID == id
	}
	multi := make(map[string]bool, len(st.MultiSelect))
	for _, id := range st.MultiSelect {
		multi[id] = true
	}

	sc := Scene{
		Title:       s.doc.Title,
		Clusters:    []ClusterView{},
		Images:      []ImageView{},
		Annotations: []AnnotationView{},
		Edges:       []EdgeView{},
		Nodes:       []NodeView{},
		Properties:  []PropertyView{},
		State:       st,
		Viewport:    s.machine.Viewport(),
		CanUndo:     s.history.CanUndo(),
		CanRedo:     s.history.CanRedo(),
	}
	var all []geometry.Rect

	for _, c := range s.doc.Clusters {
		r, ok := s.layout.ClusterRect(s.doc, c)
		if !ok {
			continue
		}
		sc.Clusters = append(sc.Clusters, ClusterView{
			ID:       c.ID,
			Name:     c.Name,
			Rect:     r,
			Header:   geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: diagram.ClusterHeader},
			Palette:  paletteFor(c.Color, geometry.DefaultClusterColor),
			Selected: selected(interaction.KindCluster, c.ID),
		})
		all = append(all, r)
	}

	for _, im := range s.doc.Images {
		sc.Images = append(sc.Images, ImageView{
			ID: im.ID, Source: im.Source, Rect: im.Rect(),
			Selected: selected(interaction.KindImage, im.ID),
		})
		all = append(all, im.Rect())
	}

	for _, a := range s.doc.Annotations {
		sc.Annotations = append(sc.Annotations, AnnotationView{
			ID: a.ID, Text: a.Text, Rect: a.Rect(),
			Palette:  paletteFor(a.Color, geometry.DefaultAnnotationColor),
			Selected: selected(interaction.KindAnnotation, a.ID),
		})
		all = append(all, a.Rect())
	}

	paths := s.Paths()
	for _, p := range paths {
		rel, _ := s.doc.Relationship(p.RelationshipID)
		sc.Edges = append(sc.Edges, EdgeView{
			Path:       p,
			Source:     rel.Source,
			Target:     rel.Target,
			Text:       rel.Label,
			LinkStyle:  rel.LinkStyle,
			ArrowStyle: rel.ArrowStyle,
			Selected: selected(interaction.KindRelationship, rel.ID) ||
				selected(interaction.KindLinkLine, rel.ID),
			Hovered: st.Hover != nil && st.Hover.ID == rel.ID,
		})
	}

	for _, n := range s.doc.Nodes {
		r, ok := s.layout.NodeRect(n)
		if !ok {
			continue
		}
		sc.Nodes = append(sc.Nodes, NodeView{
			ID:            n.ID,
			Name:          n.Name,
			Rect:          r,
			Palette:       paletteFor(n.Color, geometry.DefaultNodeColor),
			Selected:      selected(interaction.KindNode, n.ID),
			MultiSelected: multi[n.ID],
			LinkSource:    st.LinkingFrom == n.ID,
		})
		all = append(all, r)
	}

	for _, a := range routing.Anchors(s.doc, s.layout, paths) {
		prop, _, _ := s.doc.Property(a.PropertyID)
		kind := interaction.KindProperty
		if a.OwnerKind == diagram.OwnerRelationship {
			kind = interaction.KindRelationshipProperty
		}
		r := propertyRect(a.Point, prop.Name)
		sc.Properties = append(sc.Properties, PropertyView{
			Anchor:   a,
			Kind:     kind,
			Name:     prop.Name,
			Rect:     r,
			Selected: selected(kind, a.PropertyID),
		})
		all = append(all, r)
	}

	if len(st.MultiSelect) > 0 {
		if r, ok := s.layout.SelectionRect(s.doc, st.MultiSelect); ok {
			sc.MultiBox = &r
		}
	}
	if b, ok := geometry.Bounds(all); ok {
		sc.Bounds = &b
	}
	return sc
}

// FitToContent frames everything in the viewport.
func (s *Surface) FitToContent(padding float64) {
	if b := s.Scene().Bounds; b != nil {
		s.machine.SetViewport(s.machine.Viewport().FitTo(*b, padding))
	}
}
