// Package interaction is the pointer and keyboard state machine of the
// canvas. It decides which entity an event affects, tracks selection,
// dragging, linking, multi-selection and inline editing, and emits model
// mutations for the host to apply. It never mutates the model itself.
package interaction

// Kind names a selectable entity kind.
type Kind string

const (
	KindNode                 Kind = "node"
	KindProperty             Kind = "property"
	KindRelationship         Kind = "relationship"
	KindRelationshipProperty Kind = "relationship-property"
	KindImage                Kind = "image"
	KindCluster              Kind = "cluster"
	KindAnnotation           Kind = "annotation"
	KindLinkLine             Kind = "link-line"
)

// Selection is a reference to one selectable entity. The set of
// implementations is closed; use a Visitor to branch on the kind so that
// adding a kind breaks every dispatch site at compile time.
type Selection interface {
	Kind() Kind
	TargetID() string
	Accept(v Visitor)
	sealed()
}

// Visitor handles every selection kind.
type Visitor interface {
	VisitNode(NodeSelection)
	VisitProperty(PropertySelection)
	VisitRelationship(RelationshipSelection)
	VisitRelationshipProperty(RelationshipPropertySelection)
	VisitImage(ImageSelection)
	VisitCluster(ClusterSelection)
	VisitAnnotation(AnnotationSelection)
	VisitLinkLine(LinkLineSelection)
}

type NodeSelection struct{ ID string }
type PropertySelection struct{ ID string }
type RelationshipSelection struct{ ID string }
type RelationshipPropertySelection struct{ ID string }
type ImageSelection struct{ ID string }
type ClusterSelection struct{ ID string }
type AnnotationSelection struct{ ID string }

// LinkLineSelection marks the relationship under the pointer while idle.
type LinkLineSelection struct{ ID string }

func (s NodeSelection) Kind() Kind                 { return KindNode }
func (s PropertySelection) Kind() Kind             { return KindProperty }
func (s RelationshipSelection) Kind() Kind         { return KindRelationship }
func (s RelationshipPropertySelection) Kind() Kind { return KindRelationshipProperty }
func (s ImageSelection) Kind() Kind                { return KindImage }
func (s ClusterSelection) Kind() Kind              { return KindCluster }
func (s AnnotationSelection) Kind() Kind           { return KindAnnotation }
func (s LinkLineSelection) Kind() Kind             { return KindLinkLine }

func (s NodeSelection) TargetID() string                 { return s.ID }
func (s PropertySelection) TargetID() string             { return s.ID }
func (s RelationshipSelection) TargetID() string         { return s.ID }
func (s RelationshipPropertySelection) TargetID() string { return s.ID }
func (s ImageSelection) TargetID() string                { return s.ID }
func (s ClusterSelection) TargetID() string              { return s.ID }
func (s AnnotationSelection) TargetID() string           { return s.ID }
func (s LinkLineSelection) TargetID() string             { return s.ID }

func (s NodeSelection) Accept(v Visitor)                 { v.VisitNode(s) }
func (s PropertySelection) Accept(v Visitor)             { v.VisitProperty(s) }
func (s RelationshipSelection) Accept(v Visitor)         { v.VisitRelationship(s) }
func (s RelationshipPropertySelection) Accept(v Visitor) { v.VisitRelationshipProperty(s) }
func (s ImageSelection) Accept(v Visitor)                { v.VisitImage(s) }
func (s ClusterSelection) Accept(v Visitor)              { v.VisitCluster(s) }
func (s AnnotationSelection) Accept(v Visitor)           { v.VisitAnnotation(s) }
func (s LinkLineSelection) Accept(v Visitor)             { v.VisitLinkLine(s) }

func (NodeSelection) sealed()                 {}
func (PropertySelection) sealed()             {}
func (RelationshipSelection) sealed()         {}
func (RelationshipPropertySelection) sealed() {}
func (ImageSelection) sealed()                {}
func (ClusterSelection) sealed()              {}
func (AnnotationSelection) sealed()           {}
func (LinkLineSelection) sealed()             {}

// NewSelection builds a selection from its wire form. Unknown kinds yield nil.
func NewSelection(kind Kind, id string) Selection {
	switch kind {
	case KindNode:
		return NodeSelection{ID: id}
	case KindProperty:
		return PropertySelection{ID: id}
	case KindRelationship:
		return RelationshipSelection{ID: id}
	case KindRelationshipProperty:
		return RelationshipPropertySelection{ID: id}
	case KindImage:
		return ImageSelection{ID: id}
	case KindCluster:
		return ClusterSelection{ID: id}
	case KindAnnotation:
		return AnnotationSelection{ID: id}
	case KindLinkLine:
		return LinkLineSelection{ID: id}
	}
	return nil
}

// SameSelection reports whether a and b reference the same entity.
func SameSelection(a, b Selection) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.TargetID() == b.TargetID()
}

// Ref is the JSON form of a selection.
type Ref struct {
	Kind Kind   `json:"kind" validate:"required,oneof=node property relationship relationship-property image cluster annotation link-line"`
	ID   string `json:"id" validate:"required"`
}

// RefOf converts a selection to its JSON form; nil stays nil.
func RefOf(s Selection) *Ref {
	if s == nil {
		return nil
	}
	return &Ref{Kind: s.Kind(), ID: s.TargetID()}
}

// Selection converts the JSON form back.
func (r *Ref) Selection() Selection {
	if r == nil {
		return nil
	}
	return NewSelection(r.Kind, r.ID)
}
