package diagrams

import (
	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/surface"
)

// CreateCommand opens a diagram. With no Document an empty one titled Title
// is created; with no Layout the force simulation places the nodes.
type CreateCommand struct {
	Title    string            `json:"title" validate:"max=200"`
	Document *diagram.Document `json:"document,omitempty"`
	Layout   *diagram.Layout   `json:"layout,omitempty"`
}

// GenerateCommand asks the generation service for a diagram.
type GenerateCommand struct {
	Text     string `json:"text" validate:"required,max=20000"`
	Language string `json:"language,omitempty" validate:"omitempty,max=16"`
}

// MergeCommand appends another document to an open diagram.
type MergeCommand struct {
	Document diagram.Document    `json:"document"`
	Policy   diagram.MergePolicy `json:"policy" validate:"omitempty,oneof=rename reject"`
}

// View is an open diagram as clients see it.
type View struct {
	ID    string        `json:"id"`
	Scene surface.Scene `json:"scene"`
}

// DispatchResult lists what a batch of events changed.
type DispatchResult struct {
	Mutations []string      `json:"mutations"`
	Scene     surface.Scene `json:"scene"`
}

// MergeView reports a completed merge.
type MergeView struct {
	NodeIDs map[string]string `json:"nodeIds"`
	Renamed int               `json:"renamed"`
	Scene   surface.Scene     `json:"scene"`
}
