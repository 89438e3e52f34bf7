package diagram

import (
	"github.com/google/uuid"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/validation"
)

// GenerationResult is the graph description produced by the external
// text-to-graph service.
type GenerationResult struct {
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	Context       string                  `json:"context"`
	Lesson        string                  `json:"lesson"`
	Objects       []GeneratedObject       `json:"objects" validate:"dive"`
	Relationships []GeneratedRelationship `json:"relationships" validate:"dive"`
}

// GeneratedObject is one object of a generation result.
type GeneratedObject struct {
	ID         string              `json:"id" validate:"entityid"`
	Name       string              `json:"name" validate:"required"`
	Properties []GeneratedProperty `json:"properties" validate:"dive"`
}

// GeneratedProperty is a property of a generated object.
type GeneratedProperty struct {
	Name string `json:"name" validate:"required"`
}

// GeneratedRelationship connects two generated objects by id.
type GeneratedRelationship struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"`
}

// Ingest validates a generation result and turns it into a Document.
// Object ids must be unique and relationship endpoints must name objects.
// Property ids are <objectId>::<uuid>; relationships get generated ids,
// a forward arrow and a solid line.
func Ingest(res GenerationResult) (Document, error) {
	if err := validation.Get().Struct(res); err != nil {
		return Document{}, err
	}

	ids := make(map[string]bool, len(res.Objects))
	for _, o := range res.Objects {
		if ids[o.ID] {
			return Document{}, apperrors.Validation(apperrors.CodeDuplicateID, "duplicate object id").
				WithResource("object").WithDetails(o.ID).Build()
		}
		ids[o.ID] = true
	}
	for _, r := range res.Relationships {
		for _, end := range []string{r.Source, r.Target} {
			if !ids[end] {
				return Document{}, apperrors.Validation(apperrors.CodeDanglingReference, "relationship references unknown object").
					WithResource("relationship").WithDetails(end).Build()
			}
		}
	}

	doc := Document{
		Title:         res.Title,
		Description:   res.Description,
		Context:       res.Context,
		Lesson:        res.Lesson,
		Nodes:         make([]Node, 0, len(res.Objects)),
		Relationships: make([]Relationship, 0, len(res.Relationships)),
	}
	for _, o := range res.Objects {
		n := Node{ID: o.ID, Name: o.Name, Properties: make([]Property, 0, len(o.Properties))}
		for _, p := range o.Properties {
			n.Properties = append(n.Properties, Property{ID: NewPropertyID(o.ID), Name: p.Name})
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, r := range res.Relationships {
		doc.Relationships = append(doc.Relationships, Relationship{
			ID:         uuid.NewString(),
			Source:     r.Source,
			Target:     r.Target,
			Label:      r.Label,
			LinkStyle:  LinkSolid,
			ArrowStyle: ArrowForward,
			Properties: []Property{},
		})
	}
	return doc.normalized(), nil
}
