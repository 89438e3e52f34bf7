package interaction

import (
	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
)

// Mutation is a change the host should apply to the model.
type Mutation interface {
	MutationName() string
}

// Checkpoint asks the host to record an undo point before a gesture changes
// the model.
type Checkpoint struct{}

// MoveNodes sets node centres.
type MoveNodes struct {
	Positions map[string]geometry.Point
}

// MoveProperty sets a node-property offset relative to the node centre.
type MoveProperty struct {
	PropertyID string
	Offset     geometry.Point
}

// MoveRelationshipProperty sets an offset relative to the relationship label.
type MoveRelationshipProperty struct {
	PropertyID string
	Offset     geometry.Point
}

// BendRelationship sets the control-point offset from the relationship midpoint.
type BendRelationship struct {
	RelationshipID string
	Offset         geometry.Point
}

// MoveAnnotation sets an annotation's top-left corner.
type MoveAnnotation struct {
	AnnotationID string
	Position     geometry.Point
}

// MoveImage sets an image's top-left corner.
type MoveImage struct {
	ImageID  string
	Position geometry.Point
}

// ResizeImage sets an image's size.
type ResizeImage struct {
	ImageID string
	Width   float64
	Height  float64
}

// CreateRelationship links two nodes with the default relationship.
type CreateRelationship struct {
	Source string
	Target string
}

// CreateCluster groups nodes.
type CreateCluster struct {
	Name    string
	NodeIDs []string
}

// Ungroup removes a cluster record.
type Ungroup struct {
	ClusterID string
}

// Delete removes the selected entity with the matching cascade.
type Delete struct {
	Target Selection
}

// DuplicateNode copies a node.
type DuplicateNode struct {
	NodeID string
}

// Rename commits edited text to an entity.
type Rename struct {
	Target Selection
	Text   string
}

// SetColor changes an entity's background colour.
type SetColor struct {
	Target Selection
	Color  string
}

// SetLinkStyle changes a relationship stroke.
type SetLinkStyle struct {
	RelationshipID string
	Style          diagram.LinkStyle
}

// SetArrowStyle changes a relationship's arrowheads.
type SetArrowStyle struct {
	RelationshipID string
	Style          diagram.ArrowStyle
}

// Undo and Redo walk the host's history.
type Undo struct{}
type Redo struct{}

func (Checkpoint) MutationName() string               { return "checkpoint" }
func (MoveNodes) MutationName() string                { return "move-nodes" }
func (MoveProperty) MutationName() string             { return "move-property" }
func (MoveRelationshipProperty) MutationName() string { return "move-relationship-property" }
func (BendRelationship) MutationName() string         { return "bend-relationship" }
func (MoveAnnotation) MutationName() string           { return "move-annotation" }
func (MoveImage) MutationName() string                { return "move-image" }
func (ResizeImage) MutationName() string              { return "resize-image" }
func (CreateRelationship) MutationName() string       { return "create-relationship" }
func (CreateCluster) MutationName() string            { return "create-cluster" }
func (Ungroup) MutationName() string                  { return "ungroup" }
func (Delete) MutationName() string                   { return "delete" }
func (DuplicateNode) MutationName() string            { return "duplicate-node" }
func (Rename) MutationName() string                   { return "rename" }
func (SetColor) MutationName() string                 { return "set-color" }
func (SetLinkStyle) MutationName() string             { return "set-link-style" }
func (SetArrowStyle) MutationName() string            { return "set-arrow-style" }
func (Undo) MutationName() string                     { return "undo" }
func (Redo) MutationName() string                     { return "redo" }
